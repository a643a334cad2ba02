// Package swap implements the swap engine (C6): the ordered
// verification, keyset-replacement resolution, signing and spend
// pipeline that turns a set of input proofs into a set of output blind
// signatures.
package swap

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
)

// KeysRepository is the swap engine's own, narrower view of the keyset
// tiers (separate from keyset.Repository): it only needs to load a
// keyset's key material and resolve where a spent keyset's proofs
// should be replaced to.
type KeysRepository interface {
	Load(id keysetid.ID) (*keyset.Entry, error)
	Info(id keysetid.ID) (*keyset.Info, error)
	ReplacingID(id keysetid.ID) (*keysetid.ID, error)
}

// ProofRepository tracks which proofs have been spent.
type ProofRepository interface {
	Spend(proofs []ecash.Proof) error
	GetState(proofs []ecash.Proof) ([]ecash.State, error)
}

// Service runs the swap algorithm against a KeysRepository and a
// ProofRepository.
type Service struct {
	Keys   KeysRepository
	Proofs ProofRepository
}

// Swap verifies inputs, resolves their common replacement keyset, signs
// outputs against it, and marks inputs spent. Side effects (the Spend
// call) happen only after every check has passed and every signature
// has been built — a failure partway through leaves storage untouched.
func (s Service) Swap(inputs []ecash.Proof, outputs []ecash.BlindedMessage) ([]ecash.BlindSignature, error) {
	if len(inputs) == 0 {
		return nil, ecash.ErrZeroAmount
	}
	for _, out := range outputs {
		if out.Amount == 0 {
			return nil, ecash.ErrZeroAmount
		}
	}

	var inSum, outSum uint64
	for _, in := range inputs {
		inSum += in.Amount
	}
	for _, out := range outputs {
		outSum += out.Amount
	}
	if inSum != outSum {
		return nil, ecash.ErrUnmatchingAmount
	}

	unspent, err := s.verifyUnspent(inputs)
	if err != nil {
		return nil, fmt.Errorf("swap: checking proof state: %w", err)
	}
	if !unspent {
		return nil, ecash.ErrProofsAlreadySpent
	}

	verified, err := s.verifySignatures(inputs)
	if err != nil {
		if _, ok := err.(ecash.Error); ok {
			return nil, err
		}
		return nil, fmt.Errorf("swap: loading keysets: %w", err)
	}
	if !verified {
		return nil, ecash.ErrUnknownProofs
	}

	var replacementID *keysetid.ID
	for _, in := range inputs {
		id, err := s.Keys.ReplacingID(in.KeysetID)
		if err != nil {
			return nil, fmt.Errorf("swap: resolving replacement keyset: %w", err)
		}
		if id == nil {
			return nil, ecash.ErrUnknownKeyset(in.KeysetID)
		}
		if replacementID == nil {
			replacementID = id
		} else if *replacementID != *id {
			return nil, ecash.ErrUnmergeableProofs
		}
	}

	entry, err := s.Keys.Load(*replacementID)
	if err != nil {
		return nil, fmt.Errorf("swap: loading replacement keyset: %w", err)
	}
	if entry == nil {
		return nil, ecash.ErrUnknownKeyset(*replacementID)
	}

	signatures := make([]ecash.BlindSignature, 0, len(outputs))
	for _, out := range outputs {
		kp, ok := entry.KeySet.Keys[out.Amount]
		if !ok {
			return nil, ecash.ErrUnknownAmountForKeyset(*replacementID, out.Amount)
		}

		B_, err := secp256k1.ParsePubKey(out.B_)
		if err != nil {
			return nil, fmt.Errorf("swap: parsing blinded message: %w", err)
		}
		C_ := crypto.SignBlindedMessage(B_, kp.PrivateKey)

		e, sScalar, err := crypto.GenerateDLEQ(kp.PrivateKey, kp.PublicKey, B_, C_)
		if err != nil {
			return nil, fmt.Errorf("swap: generating dleq proof: %w", err)
		}

		signatures = append(signatures, ecash.BlindSignature{
			Amount:   out.Amount,
			KeysetID: *replacementID,
			C_:       C_.SerializeCompressed(),
			DLEQ: &ecash.DLEQProof{
				E: e.Serialize(),
				S: sScalar.Serialize(),
			},
		})
	}

	if err := s.Proofs.Spend(inputs); err != nil {
		return nil, fmt.Errorf("swap: spending inputs: %w", err)
	}

	return signatures, nil
}

func (s Service) verifyUnspent(proofs []ecash.Proof) (bool, error) {
	states, err := s.Proofs.GetState(proofs)
	if err != nil {
		return false, err
	}
	for _, st := range states {
		if st != ecash.Unspent {
			return false, nil
		}
	}
	return true, nil
}

// verifySignatures checks every proof's signature against its keyset.
// A missing keyset or a missing amount key is a distinct, typed error
// (the request named a keyset/amount this mint never issued); a
// genuine DHKE verification failure is reported as (false, nil) since
// it is an expected, non-exceptional outcome of checking a proof.
func (s Service) verifySignatures(proofs []ecash.Proof) (bool, error) {
	for _, p := range proofs {
		entry, err := s.Keys.Load(p.KeysetID)
		if err != nil {
			return false, err
		}
		if entry == nil {
			return false, ecash.ErrUnknownKeyset(p.KeysetID)
		}
		kp, ok := entry.KeySet.Keys[p.Amount]
		if !ok {
			return false, ecash.ErrUnknownAmountForKeyset(p.KeysetID, p.Amount)
		}

		C, err := secp256k1.ParsePubKey(p.C)
		if err != nil {
			return false, nil
		}

		if !crypto.Verify(p.Secret, kp.PrivateKey, C) {
			return false, nil
		}
	}
	return true, nil
}
