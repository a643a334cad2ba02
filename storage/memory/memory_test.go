package memory

import (
	"testing"

	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
)

func TestActiveTierRepository_TracksActivePointer(t *testing.T) {
	repo := NewActiveTierRepository()

	var idA, idB keysetid.ID
	idA[1] = 1
	idB[1] = 2

	if err := repo.Store(keyset.Entry{Info: keyset.Info{ID: idA, Active: false}}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	active, err := repo.InfoActive()
	if err != nil {
		t.Fatalf("InfoActive: %v", err)
	}
	if active != nil {
		t.Fatal("expected no active keyset yet")
	}

	if err := repo.Store(keyset.Entry{Info: keyset.Info{ID: idB, Active: true}}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	active, err = repo.InfoActive()
	if err != nil {
		t.Fatalf("InfoActive: %v", err)
	}
	if active == nil || active.ID != idB {
		t.Fatalf("expected idB active, got %+v", active)
	}
}

func TestProofRepository_SpendAndGetState(t *testing.T) {
	repo := NewProofRepository()
	var kid keysetid.ID
	p := ecash.Proof{KeysetID: kid, Secret: []byte("s1"), Amount: 1}

	states, err := repo.GetState([]ecash.Proof{p})
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if states[0] != ecash.Unspent {
		t.Fatalf("expected Unspent before spend, got %v", states[0])
	}

	if err := repo.Spend([]ecash.Proof{p}); err != nil {
		t.Fatalf("Spend: %v", err)
	}
	states, err = repo.GetState([]ecash.Proof{p})
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if states[0] != ecash.Spent {
		t.Fatalf("expected Spent after spend, got %v", states[0])
	}
}

func TestQuoteRepository_SearchByBill(t *testing.T) {
	repo := NewQuoteRepository()
	found, err := repo.SearchByBill("bill", "endorser")
	if err != nil {
		t.Fatalf("SearchByBill: %v", err)
	}
	if found != nil {
		t.Fatal("expected no quote before any is stored")
	}
}
