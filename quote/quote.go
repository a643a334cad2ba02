// Package quote implements the quote entity and its factory (C3): a
// request to endorse a bill is tracked as a Quote moving through a
// one-way Pending -> Declined | Accepted state machine.
package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/ecash"
)

// StatusKind names which branch of QuoteStatus is populated.
type StatusKind int

const (
	Pending StatusKind = iota
	Declined
	Accepted
)

// Status is QuoteStatus's Go rendering: a closed tagged union gated by
// Kind. Only the fields matching Kind are meaningful; callers should go
// through Quote's accessor methods rather than reading Status directly.
type Status struct {
	Kind       StatusKind
	Blinds     []ecash.BlindedMessage
	Signatures []ecash.BlindSignature
	TTL        time.Time
}

// Quote is a request to mint endorsement credit for a bill, addressed
// to a specific endorser. Its id is immutable once allocated; only its
// status may change, and only forward (Pending -> Declined|Accepted).
type Quote struct {
	ID        uuid.UUID
	Bill      string
	Endorser  string
	Submitted time.Time
	status    Status
}

// New creates a fresh, Pending quote with a random UUIDv4 id.
func New(bill, endorser string, blinds []ecash.BlindedMessage, submitted time.Time) Quote {
	return Quote{
		ID:        uuid.New(),
		Bill:      bill,
		Endorser:  endorser,
		Submitted: submitted,
		status:    Status{Kind: Pending, Blinds: blinds},
	}
}

// Status returns the quote's current status.
func (q Quote) Status() Status {
	return q.status
}

// IsPending reports whether the quote is still awaiting a decision.
func (q Quote) IsPending() bool {
	return q.status.Kind == Pending
}

// IsAccepted reports whether the quote was accepted, and if so returns
// its signatures and expiry.
func (q Quote) IsAccepted() (signatures []ecash.BlindSignature, ttl time.Time, ok bool) {
	if q.status.Kind != Accepted {
		return nil, time.Time{}, false
	}
	return q.status.Signatures, q.status.TTL, true
}

// IsDeclined reports whether the quote was declined.
func (q Quote) IsDeclined() bool {
	return q.status.Kind == Declined
}

// Decline transitions a Pending quote to Declined. Calling it on a
// non-Pending quote is a protocol error: status only ever moves forward.
func (q *Quote) Decline() error {
	if q.status.Kind != Pending {
		return ecash.BuildError(
			"quote already resolved: "+q.ID.String(),
			ecash.QuoteAlreadyResolvedCode,
		)
	}
	q.status = Status{Kind: Declined}
	return nil
}

// Accept transitions a Pending quote to Accepted, attaching the
// signatures produced for its blinds and the expiry they're valid
// until. Calling it on a non-Pending quote is a protocol error.
func (q *Quote) Accept(signatures []ecash.BlindSignature, ttl time.Time) error {
	if q.status.Kind != Pending {
		return ecash.BuildError(
			"quote already resolved: "+q.ID.String(),
			ecash.QuoteAlreadyResolvedCode,
		)
	}
	q.status = Status{Kind: Accepted, Signatures: signatures, TTL: ttl}
	return nil
}
