package mint

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/storage/memory"
)

func testMint(t *testing.T) (*Mint, Repositories) {
	t.Helper()
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}

	repos := Repositories{
		Quotes:    memory.NewQuoteRepository(),
		QuoteKeys: memory.NewQuoteKeysRepository(),
		Endorsed:  memory.NewTierRepository(),
		Maturity:  memory.NewTierRepository(),
		Debit:     memory.NewActiveTierRepository(),
		Proofs:    memory.NewProofRepository(),
	}

	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	return New(master, repos, now, nil), repos
}

func blindMessage(t *testing.T, amount uint64) ecash.BlindedMessage {
	t.Helper()
	var secret [32]byte
	rand.Read(secret[:])
	var blindingFactor [32]byte
	rand.Read(blindingFactor[:])
	B_, _ := crypto.BlindMessage(secret[:], blindingFactor[:])
	return ecash.BlindedMessage{Amount: amount, B_: B_.SerializeCompressed()}
}

func TestMint_RequestQuote_IsIdempotentWhilePending(t *testing.T) {
	m, _ := testMint(t)
	submitted := time.Unix(1_700_000_100, 0)
	billMaturity := time.Unix(86400*19000, 0)
	blinds := []ecash.BlindedMessage{blindMessage(t, 1)}

	id1, err := m.RequestQuote("bill-1", "endorser-1", blinds, billMaturity, submitted)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	id2, err := m.RequestQuote("bill-1", "endorser-1", blinds, billMaturity, submitted)
	if err != nil {
		t.Fatalf("RequestQuote (second): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same quote id while pending, got %v and %v", id1, id2)
	}
}

func TestMint_AcceptQuote_SignsPendingBlinds(t *testing.T) {
	m, _ := testMint(t)
	submitted := time.Unix(1_700_000_100, 0)
	billMaturity := time.Unix(86400*19000, 0)
	blinds := []ecash.BlindedMessage{blindMessage(t, 1), blindMessage(t, 2)}

	id, err := m.RequestQuote("bill-2", "endorser-1", blinds, billMaturity, submitted)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}

	ttl := submitted.Add(10 * time.Minute)
	sigs, err := m.AcceptQuote(id, ttl)
	if err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	if len(sigs) != len(blinds) {
		t.Fatalf("expected %d signatures, got %d", len(blinds), len(sigs))
	}

	if _, err := m.AcceptQuote(id, ttl); err != ecash.ErrQuoteAlreadyResolved {
		t.Fatalf("expected ErrQuoteAlreadyResolved on re-accept, got %v", err)
	}
}

func TestMint_DeclineQuote(t *testing.T) {
	m, _ := testMint(t)
	submitted := time.Unix(1_700_000_100, 0)
	billMaturity := time.Unix(86400*19000, 0)
	blinds := []ecash.BlindedMessage{blindMessage(t, 1)}

	id, err := m.RequestQuote("bill-3", "endorser-1", blinds, billMaturity, submitted)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	if err := m.DeclineQuote(id); err != nil {
		t.Fatalf("DeclineQuote: %v", err)
	}
	if err := m.DeclineQuote(id); err != ecash.ErrQuoteAlreadyResolved {
		t.Fatalf("expected ErrQuoteAlreadyResolved on re-decline, got %v", err)
	}
}

func TestMint_ListPendingAndAccepted(t *testing.T) {
	m, _ := testMint(t)
	submitted := time.Unix(1_700_000_100, 0)
	billMaturity := time.Unix(86400*19000, 0)

	pendingID, err := m.RequestQuote("bill-4", "endorser-1", []ecash.BlindedMessage{blindMessage(t, 1)}, billMaturity, submitted)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	acceptedID, err := m.RequestQuote("bill-5", "endorser-1", []ecash.BlindedMessage{blindMessage(t, 1)}, billMaturity, submitted)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	if _, err := m.AcceptQuote(acceptedID, submitted.Add(time.Hour)); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}

	pending, err := m.ListPendingQuotes(nil)
	if err != nil {
		t.Fatalf("ListPendingQuotes: %v", err)
	}
	if !containsUUID(pending, pendingID) {
		t.Fatalf("expected %v among pending quotes %v", pendingID, pending)
	}

	accepted, err := m.ListAcceptedQuotes(nil)
	if err != nil {
		t.Fatalf("ListAcceptedQuotes: %v", err)
	}
	if !containsUUID(accepted, acceptedID) {
		t.Fatalf("expected %v among accepted quotes %v", acceptedID, accepted)
	}
}

func containsUUID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
