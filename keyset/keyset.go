// Package keyset implements the keyset factory (C4) and the storage
// contracts (C7) for the endorsed, maturity and debit keyset tiers.
package keyset

import (
	"time"

	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/keysetid"
)

// Info is a keyset's metadata, stored alongside its derived key
// material. ValidTo and DerivationPathIndex are optional: a quote-tier
// keyset has a ValidTo (the bill's maturity) but no rotation index; a
// maturity-tier keyset has both.
type Info struct {
	ID                  keysetid.ID
	Unit                string
	Active              bool
	ValidFrom           time.Time
	ValidTo             *time.Time
	DerivationPath      string
	DerivationPathIndex *uint32
	MaxOrder            int
	InputFeePpk         uint
}

// Entry bundles a keyset's metadata with its derived key material, the
// unit every repository method in this package stores and loads.
type Entry struct {
	Info   Info
	KeySet *crypto.MintKeySet
}

// Repository is the per-tier storage contract (C7): the endorsed and
// maturity tiers both implement this shape.
type Repository interface {
	Info(id keysetid.ID) (*Info, error)
	KeySet(id keysetid.ID) (*crypto.MintKeySet, error)
	Load(id keysetid.ID) (*Entry, error)
	Store(e Entry) error
}

// ActiveRepository extends Repository with the debit tier's "single
// active keyset" pointer.
type ActiveRepository interface {
	Repository
	InfoActive() (*Info, error)
	KeySetActive() (*crypto.MintKeySet, error)
}

// QuoteKeysRepository is the quote-tier's storage contract: records are
// keyed by (KeysetID, quote id) rather than KeysetID alone, since a new
// quote-keyset is derived per quote even when bill+endorser repeats.
type QuoteKeysRepository interface {
	Store(quoteID uuid.UUID, e Entry) error
}

// daysSinceEpoch returns the whole number of days between the Unix
// epoch and t, matching the original implementation's
// (t - UNIX_EPOCH).num_days() truncation toward zero.
func daysSinceEpoch(t time.Time) uint32 {
	return uint32(t.UTC().Unix() / 86400)
}
