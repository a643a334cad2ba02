package mint

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
)

// signBlind signs a single blinded message against entry's key material,
// attaching a DLEQ proof. It is the quote-acceptance path's counterpart
// to the swap engine's own output-signing loop (swap.Service.Swap).
func signBlind(entry *keyset.Entry, b ecash.BlindedMessage) (ecash.BlindSignature, error) {
	kp, ok := entry.KeySet.Keys[b.Amount]
	if !ok {
		return ecash.BlindSignature{}, ecash.ErrUnknownAmountForKeyset(entry.Info.ID, b.Amount)
	}

	B_, err := secp256k1.ParsePubKey(b.B_)
	if err != nil {
		return ecash.BlindSignature{}, fmt.Errorf("parsing blinded message: %w", err)
	}
	C_ := crypto.SignBlindedMessage(B_, kp.PrivateKey)

	e, s, err := crypto.GenerateDLEQ(kp.PrivateKey, kp.PublicKey, B_, C_)
	if err != nil {
		return ecash.BlindSignature{}, fmt.Errorf("generating dleq proof: %w", err)
	}

	return ecash.BlindSignature{
		Amount:   b.Amount,
		KeysetID: entry.Info.ID,
		C_:       C_.SerializeCompressed(),
		DLEQ:     &ecash.DLEQProof{E: e.Serialize(), S: s.Serialize()},
	}, nil
}
