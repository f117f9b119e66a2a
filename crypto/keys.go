// Package crypto contains key derivation and the BDHKE primitives
// needed to lock ecash to a public key and verify DLEQ proofs.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidKeyLength is returned when raw key material does not have
// the expected byte length. It is always raised before any curve
// operation is attempted.
var ErrInvalidKeyLength = errors.New("invalid key length")

// KeyPair holds a secp256k1 keypair as hex strings. PublicKey is the
// 33-byte compressed point, not the locking form.
type KeyPair struct {
	PrivateKey string
	PublicKey  string
}

func GenerateKeyPair() (KeyPair, error) {
	privateKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, err
	}
	return keyPairFromPrivateKey(privateKey), nil
}

// KeyPairFromSeed derives a keypair deterministically from arbitrary
// seed material (e.g. the hash of a wallet name). The same seed always
// yields the same keypair.
func KeyPairFromSeed(seed []byte) KeyPair {
	hash := sha256.Sum256(seed)
	privateKey := secp256k1.PrivKeyFromBytes(hash[:])
	return keyPairFromPrivateKey(privateKey)
}

// KeyPairFromMnemonic derives the ecash receiving key from a BIP-39
// mnemonic at path m/129372'/0'/1'/0, the derivation used by Cashu
// wallets for P2PK.
func KeyPairFromMnemonic(mnemonic string) (KeyPair, error) {
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return KeyPair{}, err
	}

	// m/129372'
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + 129372)
	if err != nil {
		return KeyPair{}, err
	}

	// m/129372'/0'
	coinType, err := purpose.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return KeyPair{}, err
	}

	// m/129372'/0'/1'
	account, err := coinType.Derive(hdkeychain.HardenedKeyStart + 1)
	if err != nil {
		return KeyPair{}, err
	}

	// m/129372'/0'/1'/0
	extKey, err := account.Derive(0)
	if err != nil {
		return KeyPair{}, err
	}

	pk, err := extKey.ECPrivKey()
	if err != nil {
		return KeyPair{}, err
	}

	return keyPairFromPrivateKey(pk), nil
}

func keyPairFromPrivateKey(privateKey *secp256k1.PrivateKey) KeyPair {
	return KeyPair{
		PrivateKey: hex.EncodeToString(privateKey.Serialize()),
		PublicKey:  hex.EncodeToString(privateKey.PubKey().SerializeCompressed()),
	}
}

// DeriveLockingPubkey computes the compressed public key for the given
// private key and normalizes it to the "02" form used as a nutzap lock
// target: a key with prefix byte 0x03 gets its prefix replaced with
// 0x02, keeping the same x coordinate. This is a protocol convention so
// that counterparts agree on a single canonical lock representation.
// It is not a curve operation and the result is not necessarily the
// point computed from the private key.
func DeriveLockingPubkey(privateKey string) (string, error) {
	keyBytes, err := hex.DecodeString(privateKey)
	if err != nil {
		return "", ErrInvalidKeyLength
	}
	if len(keyBytes) != 32 {
		return "", ErrInvalidKeyLength
	}

	pubkey := secp256k1.PrivKeyFromBytes(keyBytes).PubKey().SerializeCompressed()
	if pubkey[0] == 0x03 {
		pubkey[0] = 0x02
	}
	return hex.EncodeToString(pubkey), nil
}

// ValidateKeyMatchesLock reports whether privateKey is the key behind
// lockPubkey. It accepts both the normalized "02" locking form and the
// natural compressed key, since counterparts that predate the
// normalization stored "03" keys as-is. It never returns an error:
// unparseable input yields false.
func ValidateKeyMatchesLock(privateKey, lockPubkey string) bool {
	keyBytes, err := hex.DecodeString(privateKey)
	if err != nil || len(keyBytes) != 32 {
		return false
	}

	pubkey := hex.EncodeToString(secp256k1.PrivKeyFromBytes(keyBytes).PubKey().SerializeCompressed())
	if pubkey == lockPubkey {
		return true
	}

	lockingPubkey, err := DeriveLockingPubkey(privateKey)
	if err != nil {
		return false
	}
	return lockingPubkey == lockPubkey
}

// IsCompressedPubkey reports whether value hex-decodes to exactly 33
// bytes with a 0x02 or 0x03 prefix.
func IsCompressedPubkey(value string) bool {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return false
	}
	if len(keyBytes) != 33 {
		return false
	}
	return keyBytes[0] == 0x02 || keyBytes[0] == 0x03
}

// CompressPublicKey returns the 33-byte compressed form of a public
// key. Keys that are already compressed pass through unchanged;
// 65-byte uncompressed keys get the prefix matching the parity of
// their y coordinate.
func CompressPublicKey(value string) (string, error) {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return "", ErrInvalidKeyLength
	}

	switch len(keyBytes) {
	case 33:
		return value, nil
	case 65:
		compressed := make([]byte, 33)
		if keyBytes[64]&1 == 1 {
			compressed[0] = 0x03
		} else {
			compressed[0] = 0x02
		}
		copy(compressed[1:], keyBytes[1:33])
		return hex.EncodeToString(compressed), nil
	default:
		return "", ErrInvalidKeyLength
	}
}
