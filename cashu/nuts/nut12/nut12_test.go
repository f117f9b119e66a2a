package nut12

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/openvine/nutzap/cashu"
	"github.com/openvine/nutzap/crypto"
)

func scalarMult(k *secp256k1.ModNScalar, point *secp256k1.PublicKey) *secp256k1.PublicKey {
	var p, result secp256k1.JacobianPoint
	point.AsJacobian(&p)
	secp256k1.ScalarMultNonConst(k, &p, &result)
	result.ToAffine()
	return secp256k1.NewPublicKey(&result.X, &result.Y)
}

// builds a proof with a valid DLEQ the way a mint and wallet would:
// the mint signs the blinded point and produces the proof, the wallet
// unblinds and attaches r.
func buildProofWithDLEQ(t *testing.T, secret string, mintKey *secp256k1.PrivateKey) cashu.Proof {
	t.Helper()

	A := mintKey.PubKey()

	r, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}

	B_, err := crypto.BlindMessage(secret, r)
	if err != nil {
		t.Fatal(err)
	}

	// mint: C_ = aB_
	C_ := scalarMult(&mintKey.Key, B_)

	// DLEQ: R1 = kG, R2 = kB_, e = hash(R1, R2, A, C_), s = k + ea
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	R1 := k.PubKey()
	R2 := scalarMult(&k.Key, B_)

	eHash := crypto.HashE(R1, R2, A, C_)
	var e secp256k1.ModNScalar
	e.SetByteSlice(eHash[:])

	var s secp256k1.ModNScalar
	s.Mul2(&e, &mintKey.Key).Add(&k.Key)
	sBytes := s.Bytes()

	C := crypto.UnblindSignature(C_, r, A)

	return cashu.Proof{
		Amount: 1,
		Id:     "009a1f293253e41e",
		Secret: secret,
		C:      hex.EncodeToString(C.SerializeCompressed()),
		DLEQ: &cashu.DLEQProof{
			E: hex.EncodeToString(eHash[:]),
			S: hex.EncodeToString(sBytes[:]),
			R: hex.EncodeToString(r.Serialize()),
		},
	}
}

func TestVerifyProofDLEQ(t *testing.T) {
	mintKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	proof := buildProofWithDLEQ(t, "dleq_test_secret", mintKey)

	if !VerifyProofDLEQ(proof, mintKey.PubKey()) {
		t.Fatal("valid DLEQ proof did not verify")
	}

	otherKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	if VerifyProofDLEQ(proof, otherKey.PubKey()) {
		t.Fatal("DLEQ proof verified against the wrong mint key")
	}

	tampered := proof
	tampered.Secret = "a different secret"
	if VerifyProofDLEQ(tampered, mintKey.PubKey()) {
		t.Fatal("DLEQ proof verified for a tampered secret")
	}

	noR := proof
	noR.DLEQ = &cashu.DLEQProof{E: proof.DLEQ.E, S: proof.DLEQ.S}
	if VerifyProofDLEQ(noR, mintKey.PubKey()) {
		t.Fatal("DLEQ proof without r verified")
	}

	noDLEQ := proof
	noDLEQ.DLEQ = nil
	if VerifyProofDLEQ(noDLEQ, mintKey.PubKey()) {
		t.Fatal("proof without DLEQ verified")
	}
}

func TestVerifyProofsDLEQ(t *testing.T) {
	mintKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	publicKeys := map[uint64]*secp256k1.PublicKey{1: mintKey.PubKey()}

	proofs := cashu.Proofs{
		buildProofWithDLEQ(t, "first_secret", mintKey),
		buildProofWithDLEQ(t, "second_secret", mintKey),
		// proofs without DLEQ are skipped
		{Amount: 4, Id: "009a1f293253e41e", Secret: "plain", C: "00"},
	}

	if !VerifyProofsDLEQ(proofs, publicKeys) {
		t.Fatal("valid proofs did not verify")
	}

	// amount with no known mint key
	unknownAmount := buildProofWithDLEQ(t, "third_secret", mintKey)
	unknownAmount.Amount = 8
	if VerifyProofsDLEQ(cashu.Proofs{unknownAmount}, publicKeys) {
		t.Fatal("proof with unknown amount key verified")
	}
}
