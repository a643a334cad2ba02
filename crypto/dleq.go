package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// GenerateDLEQ builds a NUT-12 style discrete-log-equality proof attesting
// that the same scalar k was used to compute both C_ = k*B_ (the blind
// signature) and A = k*G (the keyset's published amount key), without
// revealing k. The mint attaches (e, s) to the signature; UnblindSignature
// never needs it, but a wallet can verify it against A, B_ and C_.
func GenerateDLEQ(k *secp256k1.PrivateKey, A, B_, C_ *secp256k1.PublicKey) (e, s *secp256k1.PrivateKey, err error) {
	var pBytes [32]byte
	if _, err := rand.Read(pBytes[:]); err != nil {
		return nil, nil, err
	}
	p := secp256k1.PrivKeyFromBytes(pBytes[:])

	// R1 = p*G, R2 = p*B_
	R1 := p.PubKey()

	var bPoint, r2Point secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&p.Key, &bPoint, &r2Point)
	r2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&r2Point.X, &r2Point.Y)

	eBytes := hashDLEQChallenge(R1, R2, A, C_)
	e = secp256k1.PrivKeyFromBytes(eBytes[:])

	// s = p + e*k (mod n)
	var sScalar secp256k1.ModNScalar
	sScalar.Set(&e.Key)
	sScalar.Mul(&k.Key)
	sScalar.Add(&p.Key)
	sBytes := sScalar.Bytes()
	s = secp256k1.PrivKeyFromBytes(sBytes[:])

	return e, s, nil
}

// VerifyDLEQ checks a proof produced by GenerateDLEQ against the keyset's
// amount public key A, the blinded message B_ and the blind signature C_.
func VerifyDLEQ(e, s *secp256k1.PrivateKey, A, B_, C_ *secp256k1.PublicKey) bool {
	var eNeg secp256k1.ModNScalar
	eNeg.NegateVal(&e.Key)

	// R1 = s*G - e*A
	var aPoint, negEAPoint, r1Point secp256k1.JacobianPoint
	A.AsJacobian(&aPoint)
	secp256k1.ScalarMultNonConst(&eNeg, &aPoint, &negEAPoint)

	var sgPoint secp256k1.JacobianPoint
	s.PubKey().AsJacobian(&sgPoint)
	secp256k1.AddNonConst(&sgPoint, &negEAPoint, &r1Point)
	r1Point.ToAffine()
	R1 := secp256k1.NewPublicKey(&r1Point.X, &r1Point.Y)

	// R2 = s*B_ - e*C_
	var bPoint, sbPoint, cPoint, negECPoint, r2Point secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&s.Key, &bPoint, &sbPoint)

	C_.AsJacobian(&cPoint)
	secp256k1.ScalarMultNonConst(&eNeg, &cPoint, &negECPoint)
	secp256k1.AddNonConst(&sbPoint, &negECPoint, &r2Point)
	r2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&r2Point.X, &r2Point.Y)

	got := hashDLEQChallenge(R1, R2, A, C_)
	want := e.Serialize()
	return [32]byte(got) == [32]byte(want)
}

func hashDLEQChallenge(R1, R2, A, C_ *secp256k1.PublicKey) [32]byte {
	h := sha256.New()
	h.Write(R1.SerializeCompressed())
	h.Write(R2.SerializeCompressed())
	h.Write(A.SerializeCompressed())
	h.Write(C_.SerializeCompressed())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
