// Package nut11 implements [NUT-11] Pay-to-Public-Key spending
// conditions: locking secrets, signature witnesses and the signing and
// verification of locked proofs.
//
// [NUT-11]: https://github.com/cashubtc/nuts/blob/main/11.md
package nut11

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/openvine/nutzap/cashu"
	"github.com/openvine/nutzap/cashu/nuts/nut10"
	"github.com/openvine/nutzap/crypto"
)

const (
	// supported tags
	SIGFLAG  = "sigflag"
	NSIGS    = "n_sigs"
	PUBKEYS  = "pubkeys"
	LOCKTIME = "locktime"
	REFUND   = "refund"

	// SIGFLAG types
	SIGINPUTS = "SIG_INPUTS"
	SIGALL    = "SIG_ALL"

	// Error code
	NUT11ErrCode cashu.CashuErrCode = 30001
)

// errors
var (
	InvalidTagErr          = cashu.Error{Detail: "invalid tag", Code: NUT11ErrCode}
	TooManyTagsErr         = cashu.Error{Detail: "too many tags", Code: NUT11ErrCode}
	NSigsMustBePositiveErr = cashu.Error{Detail: "n_sigs must be a positive integer", Code: NUT11ErrCode}
	EmptyWitnessErr        = cashu.Error{Detail: "witness cannot be empty", Code: NUT11ErrCode}
	NotEnoughSignaturesErr = cashu.Error{Detail: "not enough valid signatures provided", Code: NUT11ErrCode}
)

type P2PKWitness struct {
	Signatures []string `json:"signatures"`
}

// SerializeWitness returns the json string to be put in the witness
// field of a proof at spend time. Signature format is not checked
// here, that happens at proof validation.
func SerializeWitness(witness P2PKWitness) (string, error) {
	witnessJson, err := json.Marshal(witness)
	if err != nil {
		return "", err
	}
	return string(witnessJson), nil
}

func DeserializeWitness(witness string) (P2PKWitness, error) {
	var p2pkWitness P2PKWitness
	if err := json.Unmarshal([]byte(witness), &p2pkWitness); err != nil {
		return P2PKWitness{}, fmt.Errorf("invalid witness: %v", err)
	}
	if len(p2pkWitness.Signatures) == 0 {
		return P2PKWitness{}, EmptyWitnessErr
	}
	return p2pkWitness, nil
}

// NewLockingSecret returns a serialized P2PK secret locking ecash to
// the given public key, along with its structured form. Each call
// generates a fresh random nonce. Pubkeys without a "02"/"03" prefix
// are treated as bare x coordinates and get a "02" prefix prepended;
// no other normalization happens here (in particular "03" keys are
// kept as given; use crypto.DeriveLockingPubkey to produce the
// canonical lock key).
func NewLockingSecret(pubkey string) (string, nut10.WellKnownSecret, error) {
	return NewLockingSecretFrom(rand.Reader, pubkey)
}

// NewLockingSecretFrom is NewLockingSecret with the nonce randomness
// read from the given source.
func NewLockingSecretFrom(random io.Reader, pubkey string) (string, nut10.WellKnownSecret, error) {
	nonceBytes := make([]byte, 32)
	if _, err := io.ReadFull(random, nonceBytes); err != nil {
		return "", nut10.WellKnownSecret{}, err
	}
	nonce := hex.EncodeToString(nonceBytes)

	if !strings.HasPrefix(pubkey, "02") && !strings.HasPrefix(pubkey, "03") {
		pubkey = "02" + pubkey
	}

	secretData := nut10.WellKnownSecret{
		Nonce: nonce,
		Data:  pubkey,
		Tags:  [][]string{{SIGFLAG, SIGINPUTS}},
	}

	secret, err := nut10.SerializeSecret(nut10.P2PK, secretData)
	if err != nil {
		return "", nut10.WellKnownSecret{}, err
	}

	return secret, secretData, nil
}

// ParseLockingSecret parses a serialized secret and verifies it is a
// P2PK secret. It wraps nut10.ErrMalformedSecret on any structural
// deviation.
func ParseLockingSecret(secret string) (nut10.WellKnownSecret, error) {
	kind, secretData, err := nut10.DeserializeSecret(secret)
	if err != nil {
		return nut10.WellKnownSecret{}, err
	}
	if kind != nut10.P2PK {
		return nut10.WellKnownSecret{}, fmt.Errorf("%w: not a P2PK secret", nut10.ErrMalformedSecret)
	}
	return secretData, nil
}

// SignMessage hashes the message with SHA-256 and signs the digest
// with a BIP-340 schnorr signature, returning the 64-byte compact
// form as hex.
func SignMessage(message string, signingKey *btcec.PrivateKey) (string, error) {
	hash := sha256.Sum256([]byte(message))
	signature, err := schnorr.Sign(signingKey, hash[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(signature.Serialize()), nil
}

// VerifySignature checks a compact signature over the SHA-256 hash of
// message against the given public key (33-byte compressed or 32-byte
// x-only hex). It returns false on any parse or verification failure.
func VerifySignature(message, signature, pubkey string) bool {
	sig, err := ParseSignature(signature)
	if err != nil {
		return false
	}

	keyBytes, err := hex.DecodeString(pubkey)
	if err != nil {
		return false
	}

	var publicKey *btcec.PublicKey
	switch len(keyBytes) {
	case 33:
		publicKey, err = btcec.ParsePubKey(keyBytes)
	case 32:
		publicKey, err = schnorr.ParsePubKey(keyBytes)
	default:
		return false
	}
	if err != nil {
		return false
	}

	hash := sha256.Sum256([]byte(message))
	return sig.Verify(hash[:], publicKey)
}

// AddSignatureToProofs signs the secret of each proof and attaches the
// resulting single-signature witness.
func AddSignatureToProofs(proofs cashu.Proofs, signingKey *btcec.PrivateKey) (cashu.Proofs, error) {
	for i, proof := range proofs {
		signature, err := SignMessage(proof.Secret, signingKey)
		if err != nil {
			return nil, err
		}

		witness, err := SerializeWitness(P2PKWitness{Signatures: []string{signature}})
		if err != nil {
			return nil, err
		}
		proof.Witness = witness
		proofs[i] = proof
	}

	return proofs, nil
}

type P2PKTags struct {
	Sigflag  string
	NSigs    int
	Pubkeys  []*btcec.PublicKey
	Locktime int64
	Refund   []*btcec.PublicKey
}

func ParseP2PKTags(tags [][]string) (*P2PKTags, error) {
	if len(tags) > 5 {
		return nil, TooManyTagsErr
	}

	p2pkTags := P2PKTags{}

	for _, tag := range tags {
		if len(tag) < 2 {
			return nil, InvalidTagErr
		}
		switch tag[0] {
		case SIGFLAG:
			sigflagType := tag[1]
			if sigflagType == SIGINPUTS || sigflagType == SIGALL {
				p2pkTags.Sigflag = sigflagType
			} else {
				errmsg := fmt.Sprintf("invalid sigflag: %v", sigflagType)
				return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
			}
		case NSIGS:
			nsig, err := strconv.ParseInt(tag[1], 10, 8)
			if err != nil {
				errmsg := fmt.Sprintf("invalid n_sigs value: %v", err)
				return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
			}
			if nsig < 0 {
				return nil, NSigsMustBePositiveErr
			}
			p2pkTags.NSigs = int(nsig)
		case PUBKEYS:
			pubkeys := make([]*btcec.PublicKey, 0, len(tag)-1)
			for i := 1; i < len(tag); i++ {
				pubkey, err := ParsePublicKey(tag[i])
				if err != nil {
					return nil, err
				}
				pubkeys = append(pubkeys, pubkey)
			}
			p2pkTags.Pubkeys = pubkeys
		case LOCKTIME:
			locktime, err := strconv.ParseInt(tag[1], 10, 64)
			if err != nil {
				errmsg := fmt.Sprintf("invalid locktime: %v", err)
				return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
			}
			p2pkTags.Locktime = locktime
		case REFUND:
			refundKeys := make([]*btcec.PublicKey, 0, len(tag)-1)
			for i := 1; i < len(tag); i++ {
				pubkey, err := ParsePublicKey(tag[i])
				if err != nil {
					return nil, err
				}
				refundKeys = append(refundKeys, pubkey)
			}
			p2pkTags.Refund = refundKeys
		}
	}

	return &p2pkTags, nil
}

// PublicKeys returns the list of public keys that can sign
// a P2PK locked proof
func PublicKeys(secret nut10.WellKnownSecret) ([]*btcec.PublicKey, error) {
	p2pkTags, err := ParseP2PKTags(secret.Tags)
	if err != nil {
		return nil, err
	}

	pubkey, err := ParsePublicKey(secret.Data)
	if err != nil {
		return nil, err
	}
	return append([]*btcec.PublicKey{pubkey}, p2pkTags.Pubkeys...), nil
}

func IsSecretP2PK(proof cashu.Proof) bool {
	return nut10.SecretType(proof) == nut10.P2PK
}

func IsSigAll(secret nut10.WellKnownSecret) bool {
	for _, tag := range secret.Tags {
		if len(tag) == 2 && tag[0] == SIGFLAG && tag[1] == SIGALL {
			return true
		}
	}
	return false
}

// CanSign reports whether key can produce a witness for the given
// secret. The secret's lock key is accepted both in the normalized
// "02" form and as the key's natural compressed form.
func CanSign(secret nut10.WellKnownSecret, key *btcec.PrivateKey) bool {
	return crypto.ValidateKeyMatchesLock(hex.EncodeToString(key.Serialize()), secret.Data)
}

// HasValidSignatures checks that the witness carries at least nSigs
// valid signatures over hash from distinct keys in pubkeys.
func HasValidSignatures(hash []byte, witness P2PKWitness, nSigs int, pubkeys []*btcec.PublicKey) bool {
	pubkeysCopy := make([]*btcec.PublicKey, len(pubkeys))
	copy(pubkeysCopy, pubkeys)

	validSignatures := 0
	for _, signature := range witness.Signatures {
		sig, err := ParseSignature(signature)
		if err != nil {
			continue
		}

		for i, pubkey := range pubkeysCopy {
			if sig.Verify(hash, pubkey) {
				validSignatures++
				if len(pubkeysCopy) > 1 {
					pubkeysCopy = slices.Delete(pubkeysCopy, i, i+1)
				}
				break
			}
		}
	}

	return validSignatures >= nSigs
}

func ParsePublicKey(key string) (*btcec.PublicKey, error) {
	hexPubkey, err := hex.DecodeString(key)
	if err != nil {
		errmsg := fmt.Sprintf("invalid public key: %v", err)
		return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
	}
	pubkey, err := btcec.ParsePubKey(hexPubkey)
	if err != nil {
		errmsg := fmt.Sprintf("invalid public key: %v", err)
		return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
	}
	return pubkey, nil
}

func ParseSignature(signature string) (*schnorr.Signature, error) {
	hexSig, err := hex.DecodeString(signature)
	if err != nil {
		errmsg := fmt.Sprintf("invalid signature: %v", err)
		return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
	}
	sig, err := schnorr.ParseSignature(hexSig)
	if err != nil {
		errmsg := fmt.Sprintf("invalid signature: %v", err)
		return nil, cashu.BuildCashuError(errmsg, NUT11ErrCode)
	}

	return sig, nil
}
