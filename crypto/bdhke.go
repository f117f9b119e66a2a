package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const hashToCurveDomainSeparator = "Secp256k1_HashToCurve_Cashu_"

// HashToCurve maps a message to a point on the curve following the
// domain-separated construction from NUT-00.
func HashToCurve(message []byte) (*secp256k1.PublicKey, error) {
	msgToHash := sha256.Sum256(append([]byte(hashToCurveDomainSeparator), message...))

	counter := make([]byte, 4)
	for i := uint32(0); i < 1<<16; i++ {
		binary.LittleEndian.PutUint32(counter, i)
		hash := sha256.Sum256(append(msgToHash[:], counter...))

		point, err := secp256k1.ParsePubKey(append([]byte{0x02}, hash[:]...))
		if err == nil {
			return point, nil
		}
	}
	return nil, errors.New("no valid point found")
}

// BlindMessage computes B_ = Y + rG for the given secret and blinding
// factor.
func BlindMessage(secret string, r *secp256k1.PrivateKey) (*secp256k1.PublicKey, error) {
	Y, err := HashToCurve([]byte(secret))
	if err != nil {
		return nil, err
	}

	var ypoint, rpoint, blindedMessage secp256k1.JacobianPoint
	Y.AsJacobian(&ypoint)
	r.PubKey().AsJacobian(&rpoint)

	secp256k1.AddNonConst(&ypoint, &rpoint, &blindedMessage)
	blindedMessage.ToAffine()
	return secp256k1.NewPublicKey(&blindedMessage.X, &blindedMessage.Y), nil
}

// UnblindSignature computes C = C_ - rK.
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey,
	K *secp256k1.PublicKey) *secp256k1.PublicKey {

	var Kpoint, rKPoint, CPoint secp256k1.JacobianPoint
	K.AsJacobian(&Kpoint)

	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)

	secp256k1.ScalarMultNonConst(&rNeg, &Kpoint, &rKPoint)

	var C_Point secp256k1.JacobianPoint
	C_.AsJacobian(&C_Point)
	secp256k1.AddNonConst(&C_Point, &rKPoint, &CPoint)
	CPoint.ToAffine()

	return secp256k1.NewPublicKey(&CPoint.X, &CPoint.Y)
}

// HashE computes the challenge hash for DLEQ proofs: the SHA-256 of
// the concatenated hex encodings of the uncompressed points.
func HashE(pubkeys ...*secp256k1.PublicKey) [32]byte {
	hash := ""
	for _, pubkey := range pubkeys {
		hash += hex.EncodeToString(pubkey.SerializeUncompressed())
	}
	return sha256.Sum256([]byte(hash))
}

// VerifyDLEQ checks that e == hash(R1, R2, A, C_) for
// R1 = sG - eA and R2 = sB_ - eC_, proving the mint used the same
// private key for its public key A and the signature C_.
func VerifyDLEQ(e, s *secp256k1.PrivateKey,
	A, B_, C_ *secp256k1.PublicKey) bool {

	var eNeg secp256k1.ModNScalar
	eNeg.NegateVal(&e.Key)

	// R1 = sG - eA
	var sG, eA, R1Point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.Key, &sG)

	var APoint secp256k1.JacobianPoint
	A.AsJacobian(&APoint)
	secp256k1.ScalarMultNonConst(&eNeg, &APoint, &eA)

	secp256k1.AddNonConst(&sG, &eA, &R1Point)
	R1Point.ToAffine()
	R1 := secp256k1.NewPublicKey(&R1Point.X, &R1Point.Y)

	// R2 = sB_ - eC_
	var BPoint, sB, eC, R2Point secp256k1.JacobianPoint
	B_.AsJacobian(&BPoint)
	secp256k1.ScalarMultNonConst(&s.Key, &BPoint, &sB)

	var CPoint secp256k1.JacobianPoint
	C_.AsJacobian(&CPoint)
	secp256k1.ScalarMultNonConst(&eNeg, &CPoint, &eC)

	secp256k1.AddNonConst(&sB, &eC, &R2Point)
	R2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&R2Point.X, &R2Point.Y)

	hash := HashE(R1, R2, A, C_)
	var expected secp256k1.ModNScalar
	expected.SetByteSlice(hash[:])

	return expected.Equals(&e.Key)
}
