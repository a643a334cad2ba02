// Package memory provides in-process reference implementations of every
// C7 storage contract, grounded on the original prototype's in-memory
// repositories (a map behind a single mutex, one per repository).
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
	"github.com/bitcredit/creditmint/quote"
)

// QuoteRepository is an in-process quote.Repository.
type QuoteRepository struct {
	mu sync.RWMutex
	m  map[uuid.UUID]quote.Quote
}

func NewQuoteRepository() *QuoteRepository {
	return &QuoteRepository{m: make(map[uuid.UUID]quote.Quote)}
}

func (r *QuoteRepository) SearchByBill(bill, endorser string) (*quote.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, q := range r.m {
		if q.Bill == bill && q.Endorser == endorser {
			cp := q
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *QuoteRepository) Store(q quote.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[q.ID] = q
	return nil
}

func (r *QuoteRepository) Load(id uuid.UUID) (*quote.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// UpdateIfPending replaces the stored quote with q only if the quote
// currently on file for q.ID is still Pending; otherwise the update is
// silently dropped, matching the original's guard against clobbering a
// concurrent accept/decline.
func (r *QuoteRepository) UpdateIfPending(q quote.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.m[q.ID]
	if ok && old.IsPending() {
		r.m[q.ID] = q
	}
	return nil
}

func (r *QuoteRepository) ListPending(since *time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for id, q := range r.m {
		if !q.IsPending() {
			continue
		}
		if since != nil && q.Submitted.Before(*since) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *QuoteRepository) ListAccepted(since *time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for id, q := range r.m {
		if _, _, ok := q.IsAccepted(); !ok {
			continue
		}
		if since != nil && q.Submitted.Before(*since) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// QuoteKeysRepository is an in-process keyset.QuoteKeysRepository,
// indexed by (KeysetID, quote id) since a fresh quote-keyset is derived
// per quote even when the same KeysetID body repeats.
type QuoteKeysRepository struct {
	mu sync.RWMutex
	m  map[[2]string]keyset.Entry
}

func NewQuoteKeysRepository() *QuoteKeysRepository {
	return &QuoteKeysRepository{m: make(map[[2]string]keyset.Entry)}
}

func (r *QuoteKeysRepository) Store(quoteID uuid.UUID, e keyset.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[[2]string{e.Info.ID.String(), quoteID.String()}] = e
	return nil
}

// TierRepository is an in-process keyset.Repository, used for both the
// endorsed and maturity tiers (they share the same shape).
type TierRepository struct {
	mu sync.RWMutex
	m  map[keysetid.ID]keyset.Entry
}

func NewTierRepository() *TierRepository {
	return &TierRepository{m: make(map[keysetid.ID]keyset.Entry)}
}

func (r *TierRepository) Info(id keysetid.ID) (*keyset.Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	info := e.Info
	return &info, nil
}

func (r *TierRepository) KeySet(id keysetid.ID) (*crypto.MintKeySet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return e.KeySet, nil
}

func (r *TierRepository) Load(id keysetid.ID) (*keyset.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *TierRepository) Store(e keyset.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[e.Info.ID] = e
	return nil
}

// ActiveTierRepository wraps TierRepository with the debit tier's
// "single active keyset" pointer, updated whenever an entry is stored
// with Info.Active set.
type ActiveTierRepository struct {
	*TierRepository
	mu     sync.RWMutex
	active *keysetid.ID
}

func NewActiveTierRepository() *ActiveTierRepository {
	return &ActiveTierRepository{TierRepository: NewTierRepository()}
}

func (r *ActiveTierRepository) Store(e keyset.Entry) error {
	if err := r.TierRepository.Store(e); err != nil {
		return err
	}
	if e.Info.Active {
		r.mu.Lock()
		id := e.Info.ID
		r.active = &id
		r.mu.Unlock()
	}
	return nil
}

func (r *ActiveTierRepository) InfoActive() (*keyset.Info, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active == nil {
		return nil, nil
	}
	return r.TierRepository.Info(*active)
}

func (r *ActiveTierRepository) KeySetActive() (*crypto.MintKeySet, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active == nil {
		return nil, nil
	}
	return r.TierRepository.KeySet(*active)
}

// ProofRepository is an in-process swap.ProofRepository, keyed on the
// proof's keyset id together with its secret, the same key
// storage/bolt uses.
type ProofRepository struct {
	mu    sync.RWMutex
	spent map[string]bool
}

func NewProofRepository() *ProofRepository {
	return &ProofRepository{spent: make(map[string]bool)}
}

func proofKey(p ecash.Proof) string {
	return p.KeysetID.String() + ":" + string(p.Secret)
}

func (r *ProofRepository) Spend(proofs []ecash.Proof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range proofs {
		r.spent[proofKey(p)] = true
	}
	return nil
}

func (r *ProofRepository) GetState(proofs []ecash.Proof) ([]ecash.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]ecash.State, len(proofs))
	for i, p := range proofs {
		if r.spent[proofKey(p)] {
			states[i] = ecash.Spent
		} else {
			states[i] = ecash.Unspent
		}
	}
	return states, nil
}
