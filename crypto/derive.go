package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/keysetid"
)

// MaxOrder is the number of denominations a keyset carries: one key for
// each of 2^0 .. 2^(MaxOrder-1).
const MaxOrder = 20

// purposePath is the two hardened top-level indices every keyset path
// starts with: 129372 ('🥜' in UTF-8) and 129534 ('🧾' in UTF-8), the
// same convention NUT-13 restore paths use for wallet-side derivation.
func purposePath(master *hdkeychain.ExtendedKey) (*hdkeychain.ExtendedKey, error) {
	nut, err := master.Derive(hdkeychain.HardenedKeyStart + 129372)
	if err != nil {
		return nil, err
	}
	return nut.Derive(hdkeychain.HardenedKeyStart + 129534)
}

// MintKeySet is a derived keyset: one key pair per denomination.
type MintKeySet struct {
	Keys map[uint64]KeyPair
}

type KeyPair struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

// PathIndexForQuote derives the hardened child index for a quote id:
// the first 4 bytes of SHA-256(quote id bytes), big-endian, clamped
// below 2^31.
func PathIndexForQuote(quote uuid.UUID) uint32 {
	const maxIndex = 1<<31 - 1
	sum := sha256.Sum256(quote[:])
	idx := binary.BigEndian.Uint32(sum[0:4])
	if idx > maxIndex {
		return maxIndex
	}
	return idx
}

// deriveAmounts walks MaxOrder hardened amount children off path and
// collects a KeyPair per denomination 2^i.
func deriveAmounts(path *hdkeychain.ExtendedKey) (map[uint64]KeyPair, error) {
	keys := make(map[uint64]KeyPair, MaxOrder)
	for i := 0; i < MaxOrder; i++ {
		amount := uint64(1) << uint(i)
		child, err := path.Derive(hdkeychain.HardenedKeyStart + uint32(i))
		if err != nil {
			return nil, err
		}
		priv, err := child.ECPrivKey()
		if err != nil {
			return nil, err
		}
		pub, err := child.ECPubKey()
		if err != nil {
			return nil, err
		}
		keys[amount] = KeyPair{PrivateKey: priv, PublicKey: pub}
	}
	return keys, nil
}

// GenerateQuoteKeyset derives the endorsement-tier keyset for a quote,
// along the path m/129372'/129534'/<kidx>'/<qidx>', where kidx comes
// from the quote-keyset's own KeysetID body and qidx from the quote id.
func GenerateQuoteKeyset(master *hdkeychain.ExtendedKey, kid keysetid.ID, quote uuid.UUID) (*MintKeySet, error) {
	root, err := purposePath(master)
	if err != nil {
		return nil, err
	}

	keysetChild, err := root.Derive(hdkeychain.HardenedKeyStart + kid.PathIndex())
	if err != nil {
		return nil, err
	}

	quoteChild, err := keysetChild.Derive(hdkeychain.HardenedKeyStart + PathIndexForQuote(quote))
	if err != nil {
		return nil, err
	}

	keys, err := deriveAmounts(quoteChild)
	if err != nil {
		return nil, err
	}
	return &MintKeySet{Keys: keys}, nil
}

// GenerateMaturityKeyset derives the maturity-tier keyset for a bill's
// maturity date and rotation index, along the path
// m/129372'/129534'/<maturity_days>'/<rotation>'.
func GenerateMaturityKeyset(master *hdkeychain.ExtendedKey, maturityDays uint32, rotation uint32) (*MintKeySet, error) {
	root, err := purposePath(master)
	if err != nil {
		return nil, err
	}

	maturityChild, err := root.Derive(hdkeychain.HardenedKeyStart + maturityDays)
	if err != nil {
		return nil, err
	}

	rotationChild, err := maturityChild.Derive(hdkeychain.HardenedKeyStart + rotation)
	if err != nil {
		return nil, err
	}

	keys, err := deriveAmounts(rotationChild)
	if err != nil {
		return nil, err
	}
	return &MintKeySet{Keys: keys}, nil
}

// PublicKeys returns the public half of each denomination's key pair.
func (ks *MintKeySet) PublicKeys() map[uint64]*secp256k1.PublicKey {
	pubs := make(map[uint64]*secp256k1.PublicKey, len(ks.Keys))
	for amount, kp := range ks.Keys {
		pubs[amount] = kp.PublicKey
	}
	return pubs
}
