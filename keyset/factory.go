package keyset

import (
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keysetid"
)

// Factory derives and stores the keysets a newly allocated quote needs
// (C4). It always derives a fresh, inactive endorsement keyset for the
// quote; it derives and activates the bill's maturity keyset (rotation
// 0) only the first time that maturity date is seen, so repeated quotes
// maturing on the same day share one maturity keyset.
//
// The quote keyset is written to two places: QuoteKeys, keyed by
// (KeysetID, quote id), for per-quote audit/dedup bookkeeping, and
// Endorsed, keyed by KeysetID alone, which is what the cascade
// repository's endorsed tier actually resolves lookups against during a
// swap. A KeysetID is deterministic from (bill, endorser) alone, so a
// requoted bill naturally overwrites its prior Endorsed entry with the
// latest quote's keyset.
type Factory struct {
	Master       *hdkeychain.ExtendedKey
	QuoteKeys    QuoteKeysRepository
	Endorsed     Repository
	MaturityKeys Repository
	Now          func() time.Time
}

// Generate derives the quote-tier keyset for (kid, quote), persists it
// (inactive, valid until billMaturity), and — only if no maturity
// keyset exists yet for billMaturity's day — derives and persists the
// rotation-0 maturity keyset as active. It always returns the quote
// keyset, never the maturity one.
func (f Factory) Generate(kid keysetid.ID, quote uuid.UUID, billMaturity time.Time) (*crypto.MintKeySet, error) {
	now := f.Now
	if now == nil {
		now = time.Now
	}

	quoteKeySet, err := crypto.GenerateQuoteKeyset(f.Master, kid, quote)
	if err != nil {
		return nil, err
	}

	validTo := billMaturity
	quoteInfo := Info{
		ID:                  kid,
		Unit:                ecash.Unit,
		Active:              false,
		ValidFrom:           now(),
		ValidTo:             &validTo,
		DerivationPath:      "m/129372'/129534'",
		DerivationPathIndex: nil,
		MaxOrder:            crypto.MaxOrder,
		InputFeePpk:         0,
	}
	quoteEntry := Entry{Info: quoteInfo, KeySet: quoteKeySet}
	if err := f.QuoteKeys.Store(quote, quoteEntry); err != nil {
		return nil, err
	}
	if err := f.Endorsed.Store(quoteEntry); err != nil {
		return nil, err
	}

	maturityDays := daysSinceEpoch(billMaturity)
	maturityID, err := keysetid.FromMaturity(maturityDays, 0)
	if err != nil {
		return nil, err
	}

	existing, err := f.MaturityKeys.Info(maturityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return quoteKeySet, nil
	}

	maturityKeySet, err := crypto.GenerateMaturityKeyset(f.Master, maturityDays, 0)
	if err != nil {
		return nil, err
	}

	rotationIdx := uint32(0)
	maturityInfo := Info{
		ID:                  maturityID,
		Unit:                ecash.Unit,
		Active:              true,
		ValidFrom:           now(),
		ValidTo:             &validTo,
		DerivationPath:      "m/129372'/129534'",
		DerivationPathIndex: &rotationIdx,
		MaxOrder:            crypto.MaxOrder,
		InputFeePpk:         0,
	}
	if err := f.MaturityKeys.Store(Entry{Info: maturityInfo, KeySet: maturityKeySet}); err != nil {
		return nil, err
	}

	return quoteKeySet, nil
}
