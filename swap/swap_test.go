package swap

import (
	"crypto/rand"
	"sync"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
)

type fakeKeys struct {
	entries map[keysetid.ID]keyset.Entry
	replace map[keysetid.ID]keysetid.ID
}

func (f *fakeKeys) Load(id keysetid.ID) (*keyset.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeKeys) Info(id keysetid.ID) (*keyset.Info, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	return &e.Info, nil
}

func (f *fakeKeys) ReplacingID(id keysetid.ID) (*keysetid.ID, error) {
	r, ok := f.replace[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

type fakeProofs struct {
	mu    sync.Mutex
	spent map[string]bool
}

func keyOf(p ecash.Proof) string { return string(p.Secret) }

func (f *fakeProofs) Spend(proofs []ecash.Proof) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spent == nil {
		f.spent = make(map[string]bool)
	}
	for _, p := range proofs {
		f.spent[keyOf(p)] = true
	}
	return nil
}

func (f *fakeProofs) GetState(proofs []ecash.Proof) ([]ecash.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	states := make([]ecash.State, len(proofs))
	for i, p := range proofs {
		if f.spent[keyOf(p)] {
			states[i] = ecash.Spent
		} else {
			states[i] = ecash.Unspent
		}
	}
	return states, nil
}

// testKeyset builds a keyset entry for id with a freshly generated key
// pair for each of amounts, and returns the private keys by amount.
func testKeyset(id keysetid.ID, amounts ...uint64) (keyset.Entry, map[uint64]*secp256k1.PrivateKey) {
	keys := make(map[uint64]crypto.KeyPair)
	privs := make(map[uint64]*secp256k1.PrivateKey)
	for _, a := range amounts {
		k, _ := secp256k1.GeneratePrivateKey()
		keys[a] = crypto.KeyPair{PrivateKey: k, PublicKey: k.PubKey()}
		privs[a] = k
	}
	return keyset.Entry{
		Info:   keyset.Info{ID: id},
		KeySet: &crypto.MintKeySet{Keys: keys},
	}, privs
}

func mkProof(secret string, amount uint64, kid keysetid.ID, priv *secp256k1.PrivateKey) ecash.Proof {
	var blindingFactor [32]byte
	rand.Read(blindingFactor[:])
	B_, r := crypto.BlindMessage([]byte(secret), blindingFactor[:])
	C_ := crypto.SignBlindedMessage(B_, priv)
	C := crypto.UnblindSignature(C_, r, priv.PubKey())
	return ecash.Proof{
		Amount:   amount,
		KeysetID: kid,
		Secret:   []byte(secret),
		C:        C.SerializeCompressed(),
	}
}

func id(b byte) keysetid.ID {
	var out keysetid.ID
	out[1] = b
	return out
}

func TestSwap_SplitTokensOK(t *testing.T) {
	kidIn, kidOut := id(1), id(2)
	entryIn, privsIn := testKeyset(kidIn, 8)
	entryOut, _ := testKeyset(kidOut, 4)

	keys := &fakeKeys{
		entries: map[keysetid.ID]keyset.Entry{kidIn: entryIn, kidOut: entryOut},
		replace: map[keysetid.ID]keysetid.ID{kidIn: kidOut},
	}
	svc := Service{Keys: keys, Proofs: &fakeProofs{}}

	input := mkProof("secret-1", 8, kidIn, privsIn[8])

	var out1, out2 [32]byte
	rand.Read(out1[:])
	rand.Read(out2[:])
	B_1, _ := crypto.BlindMessage(out1[:], out1[:])
	B_2, _ := crypto.BlindMessage(out2[:], out2[:])

	outputs := []ecash.BlindedMessage{
		{Amount: 4, KeysetID: kidOut, B_: B_1.SerializeCompressed()},
		{Amount: 4, KeysetID: kidOut, B_: B_2.SerializeCompressed()},
	}

	sigs, err := svc.Swap([]ecash.Proof{input}, outputs)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}
	for _, sig := range sigs {
		if sig.KeysetID != kidOut {
			t.Fatalf("signature keyset = %v, want %v", sig.KeysetID, kidOut)
		}
	}
}

func TestSwap_WrongSignatureRejected(t *testing.T) {
	kid := id(3)
	entry, _ := testKeyset(kid, 8)
	other, _ := secp256k1.GeneratePrivateKey()

	keys := &fakeKeys{entries: map[keysetid.ID]keyset.Entry{kid: entry}}
	svc := Service{Keys: keys, Proofs: &fakeProofs{}}

	badInput := mkProof("secret-bad", 8, kid, other)
	_, err := svc.Swap([]ecash.Proof{badInput}, []ecash.BlindedMessage{{Amount: 8, KeysetID: kid, B_: entryPubBytes(entry, 8)}})
	if err != ecash.ErrUnknownProofs {
		t.Fatalf("expected ErrUnknownProofs, got %v", err)
	}
}

func entryPubBytes(e keyset.Entry, amount uint64) []byte {
	return e.KeySet.Keys[amount].PublicKey.SerializeCompressed()
}

func TestSwap_MissingKeysetDuringSignatureVerification(t *testing.T) {
	kid := id(30)
	keys := &fakeKeys{entries: map[keysetid.ID]keyset.Entry{}}
	svc := Service{Keys: keys, Proofs: &fakeProofs{}}

	other, _ := secp256k1.GeneratePrivateKey()
	input := mkProof("secret-no-keyset", 8, kid, other)

	_, err := svc.Swap([]ecash.Proof{input}, []ecash.BlindedMessage{{Amount: 8, KeysetID: kid}})
	want := ecash.ErrUnknownKeyset(kid)
	if err != want {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestSwap_MissingAmountDuringSignatureVerification(t *testing.T) {
	kid := id(31)
	entry, privs := testKeyset(kid, 8)
	keys := &fakeKeys{entries: map[keysetid.ID]keyset.Entry{kid: entry}}
	svc := Service{Keys: keys, Proofs: &fakeProofs{}}

	// The proof claims an amount the keyset has no key for.
	input := mkProof("secret-no-amount", 16, kid, privs[8])

	_, err := svc.Swap([]ecash.Proof{input}, []ecash.BlindedMessage{{Amount: 16, KeysetID: kid}})
	want := ecash.ErrUnknownAmountForKeyset(kid, uint64(16))
	if err != want {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestSwap_AlreadySpentRejected(t *testing.T) {
	kid := id(4)
	entry, privs := testKeyset(kid, 8)
	keys := &fakeKeys{entries: map[keysetid.ID]keyset.Entry{kid: entry}, replace: map[keysetid.ID]keysetid.ID{kid: kid}}
	proofs := &fakeProofs{}
	svc := Service{Keys: keys, Proofs: proofs}

	input := mkProof("secret-spent", 8, kid, privs[8])
	proofs.Spend([]ecash.Proof{input})

	_, err := svc.Swap([]ecash.Proof{input}, []ecash.BlindedMessage{{Amount: 8, KeysetID: kid}})
	if err != ecash.ErrProofsAlreadySpent {
		t.Fatalf("expected ErrProofsAlreadySpent, got %v", err)
	}
}

func TestSwap_UnmatchingAmountsRejected(t *testing.T) {
	kid := id(5)
	entry, privs := testKeyset(kid, 8)
	keys := &fakeKeys{entries: map[keysetid.ID]keyset.Entry{kid: entry}, replace: map[keysetid.ID]keysetid.ID{kid: kid}}
	svc := Service{Keys: keys, Proofs: &fakeProofs{}}

	input := mkProof("secret-mismatch", 8, kid, privs[8])
	_, err := svc.Swap([]ecash.Proof{input}, []ecash.BlindedMessage{{Amount: 4, KeysetID: kid}})
	if err != ecash.ErrUnmatchingAmount {
		t.Fatalf("expected ErrUnmatchingAmount, got %v", err)
	}
}

func TestSwap_UnmergeableProofsRejected(t *testing.T) {
	kidA, kidB := id(6), id(7)
	entryA, privsA := testKeyset(kidA, 4)
	entryB, privsB := testKeyset(kidB, 4)

	keys := &fakeKeys{
		entries: map[keysetid.ID]keyset.Entry{kidA: entryA, kidB: entryB},
		replace: map[keysetid.ID]keysetid.ID{kidA: id(100), kidB: id(200)},
	}
	svc := Service{Keys: keys, Proofs: &fakeProofs{}}

	inA := mkProof("secret-a", 4, kidA, privsA[4])
	inB := mkProof("secret-b", 4, kidB, privsB[4])

	_, err := svc.Swap([]ecash.Proof{inA, inB}, []ecash.BlindedMessage{{Amount: 8, KeysetID: kidA}})
	if err != ecash.ErrUnmergeableProofs {
		t.Fatalf("expected ErrUnmergeableProofs, got %v", err)
	}
}

func TestSwap_ZeroAmountRejected(t *testing.T) {
	svc := Service{Keys: &fakeKeys{}, Proofs: &fakeProofs{}}
	_, err := svc.Swap(nil, nil)
	if err != ecash.ErrZeroAmount {
		t.Fatalf("expected ErrZeroAmount for empty inputs, got %v", err)
	}
}
