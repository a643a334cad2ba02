package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/ecash"
)

// Repository is the storage contract a Factory (and a mint facade)
// needs for quotes (C7). search_by_bill backs Factory.Generate's dedup
// check; the remaining methods support the quote lifecycle operations
// around it: loading a quote by id, updating it only while it's still
// Pending (guarding against racing with a concurrent accept/decline),
// and listing quotes by status for an operator to act on.
type Repository interface {
	SearchByBill(bill, endorser string) (*Quote, error)
	Store(q Quote) error
	Load(id uuid.UUID) (*Quote, error)
	UpdateIfPending(q Quote) error
	ListPending(since *time.Time) ([]uuid.UUID, error)
	ListAccepted(since *time.Time) ([]uuid.UUID, error)
}

// Factory allocates quotes, deduplicating on (bill, endorser): a new
// quote is created only when none exists yet, or when the existing one
// was Accepted and has since expired. Otherwise the existing quote's id
// is returned unchanged, so a repeated request for the same bill before
// its quote resolves is idempotent.
type Factory struct {
	Quotes Repository
}

// Generate returns the id of the quote to use for (bill, endorser),
// creating one if needed.
func (f Factory) Generate(bill, endorser string, blinds []ecash.BlindedMessage, submitted time.Time) (uuid.UUID, error) {
	existing, err := f.Quotes.SearchByBill(bill, endorser)
	if err != nil {
		return uuid.Nil, err
	}

	if existing == nil {
		q := New(bill, endorser, blinds, submitted)
		if err := f.Quotes.Store(q); err != nil {
			return uuid.Nil, err
		}
		return q.ID, nil
	}

	if signatures, ttl, ok := existing.IsAccepted(); ok {
		_ = signatures
		if ttl.Before(submitted) {
			q := New(bill, endorser, blinds, submitted)
			if err := f.Quotes.Store(q); err != nil {
				return uuid.Nil, err
			}
			return q.ID, nil
		}
	}

	return existing.ID, nil
}
