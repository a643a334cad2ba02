// Package cascade implements the cascading keyset repository (C5): it
// resolves a keyset id's lookup and its "what should inputs of this
// keyset be replaced with" question across the endorsed, maturity and
// debit tiers, in that order.
package cascade

import (
	"time"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
)

// Repository wires the three keyset tiers together and implements the
// swap engine's narrower KeysRepository contract (load/info/replacing_id)
// by cascading across them.
type Repository struct {
	Endorsed keyset.Repository
	Maturity keyset.Repository
	Debit    keyset.ActiveRepository
}

// Info looks up a keyset's metadata, trying each tier in turn.
func (r Repository) Info(id keysetid.ID) (*keyset.Info, error) {
	if info, err := r.Endorsed.Info(id); err != nil {
		return nil, err
	} else if info != nil {
		return info, nil
	}
	if info, err := r.Maturity.Info(id); err != nil {
		return nil, err
	} else if info != nil {
		return info, nil
	}
	return r.Debit.Info(id)
}

// KeySet looks up a keyset's key material, trying each tier in turn.
func (r Repository) KeySet(id keysetid.ID) (*crypto.MintKeySet, error) {
	if ks, err := r.Endorsed.KeySet(id); err != nil {
		return nil, err
	} else if ks != nil {
		return ks, nil
	}
	if ks, err := r.Maturity.KeySet(id); err != nil {
		return nil, err
	} else if ks != nil {
		return ks, nil
	}
	return r.Debit.KeySet(id)
}

// Load looks up a keyset's full entry, trying each tier in turn.
func (r Repository) Load(id keysetid.ID) (*keyset.Entry, error) {
	if e, err := r.Endorsed.Load(id); err != nil {
		return nil, err
	} else if e != nil {
		return e, nil
	}
	if e, err := r.Maturity.Load(id); err != nil {
		return nil, err
	} else if e != nil {
		return e, nil
	}
	return r.Debit.Load(id)
}

// findMaturityByDate walks forward through rotation indices at a given
// maturity date until it finds one with no keyset (the search is over,
// nothing active exists for this maturity) or finds the active one.
func (r Repository) findMaturityByDate(maturityDays uint32, rotation uint32) (*keysetid.ID, error) {
	for {
		id, err := keysetid.FromMaturity(maturityDays, rotation)
		if err != nil {
			return nil, err
		}
		info, err := r.Maturity.Info(id)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, nil
		}
		if info.Active {
			return &id, nil
		}
		rotation++
	}
}

// findMaturityByID resolves a maturity-tier id to the currently active
// rotation for the same maturity date: if id itself is active, it is
// the answer; otherwise its ValidTo/DerivationPathIndex tell us where to
// resume walking forward.
func (r Repository) findMaturityByID(id keysetid.ID) (*keysetid.ID, error) {
	info, err := r.Maturity.Info(id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	if info.Active {
		return &id, nil
	}
	if info.ValidTo == nil || info.DerivationPathIndex == nil {
		return nil, nil
	}
	maturityDays := daysSinceEpoch(*info.ValidTo)
	return r.findMaturityByDate(maturityDays, *info.DerivationPathIndex+1)
}

// ReplacingID answers "what keyset should proofs bearing id be swapped
// into?" (C5's core algorithm). It first tries: if id is an endorsed-tier
// keyset, walk forward from rotation 0 to the active maturity keyset for
// its bill's maturity date. Regardless of whether that succeeded, it then tries to
// resolve id within the maturity tier itself. Finally it falls back to
// the debit tier's single active keyset. A nil, nil result means no
// replacement exists anywhere.
func (r Repository) ReplacingID(id keysetid.ID) (*keysetid.ID, error) {
	endorsedInfo, err := r.Endorsed.Info(id)
	if err != nil {
		return nil, err
	}
	if endorsedInfo != nil && endorsedInfo.ValidTo != nil {
		maturityDays := daysSinceEpoch(*endorsedInfo.ValidTo)
		if found, err := r.findMaturityByDate(maturityDays, 0); err != nil {
			return nil, err
		} else if found != nil {
			return found, nil
		}
	}

	if found, err := r.findMaturityByID(id); err != nil {
		return nil, err
	} else if found != nil {
		return found, nil
	}

	debitInfo, err := r.Debit.InfoActive()
	if err != nil {
		return nil, err
	}
	if debitInfo == nil {
		return nil, nil
	}
	return &debitInfo.ID, nil
}

func daysSinceEpoch(t time.Time) uint32 {
	return uint32(t.UTC().Unix() / 86400)
}
