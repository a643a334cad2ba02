// Package ecash holds the wire data model shared by the quote, keyset,
// cascade and swap packages: blinded messages, blind signatures, proofs
// and their DLEQ proofs, plus the unit this mint issues credits in.
package ecash

import "github.com/bitcredit/creditmint/keysetid"

// Unit is the currency unit string attached to every keyset and every
// message exchanged with it. This mint issues a single custom unit.
const Unit = "crsat"

// BlindedMessage is a wallet-blinded secret submitted for signing,
// tagged with the amount and keyset it should be signed against.
type BlindedMessage struct {
	Amount    uint64
	KeysetID  keysetid.ID
	B_        []byte // compressed secp256k1 point
}

// BlindSignature is the mint's response to a BlindedMessage: the signed
// point plus an optional DLEQ proof a wallet can use to verify the mint
// signed honestly without revealing its private key.
type BlindSignature struct {
	Amount   uint64
	KeysetID keysetid.ID
	C_       []byte
	DLEQ     *DLEQProof
}

// DLEQProof is a NUT-12 style discrete-log-equality proof: e and s are
// secp256k1 scalars, r is only present on unblinded proofs (it lets a
// recipient re-derive the blinded message to verify against the mint's
// published amount key).
type DLEQProof struct {
	E []byte
	S []byte
	R []byte
}

// Proof is an unblinded, spendable token: a secret, the mint's
// signature over it (C), and the keyset + amount it was issued from.
type Proof struct {
	Amount   uint64
	KeysetID keysetid.ID
	Secret   []byte
	C        []byte
	DLEQ     *DLEQProof
}

// State is the spend status of a Proof as tracked by a ProofRepository.
type State int

const (
	Unspent State = iota
	Spent
)

func (s State) String() string {
	if s == Spent {
		return "SPENT"
	}
	return "UNSPENT"
}

// AmountSplit decomposes amount into the powers of two that sum to it,
// ascending. This is how a wallet picks which denominations to ask a
// mint to sign.
func AmountSplit(amount uint64) []uint64 {
	var amounts []uint64
	for i := 0; amount != 0; i++ {
		if amount&1 == 1 {
			amounts = append(amounts, 1<<uint(i))
		}
		amount >>= 1
	}
	return amounts
}
