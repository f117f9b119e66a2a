package crypto

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// generates a keypair whose natural compressed pubkey has the given
// prefix
func keyPairWithPrefix(t *testing.T, prefix string) KeyPair {
	t.Helper()
	for i := 0; i < 256; i++ {
		keyPair, err := GenerateKeyPair()
		if err != nil {
			t.Fatal(err)
		}
		if strings.HasPrefix(keyPair.PublicKey, prefix) {
			return keyPair
		}
	}
	t.Fatalf("could not generate keypair with prefix %s", prefix)
	return KeyPair{}
}

func TestDeriveLockingPubkey(t *testing.T) {
	keyPair02 := keyPairWithPrefix(t, "02")
	lockingPubkey, err := DeriveLockingPubkey(keyPair02.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if lockingPubkey != keyPair02.PublicKey {
		t.Fatalf("expected '%v' but got '%v' instead", keyPair02.PublicKey, lockingPubkey)
	}

	keyPair03 := keyPairWithPrefix(t, "03")
	lockingPubkey, err = DeriveLockingPubkey(keyPair03.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(lockingPubkey, "02") {
		t.Fatalf("expected locking pubkey with '02' prefix but got '%v'", lockingPubkey)
	}
	if lockingPubkey[2:] != keyPair03.PublicKey[2:] {
		t.Fatalf("locking pubkey changed the x coordinate: '%v' vs '%v'",
			lockingPubkey[2:], keyPair03.PublicKey[2:])
	}
}

func TestDeriveLockingPubkeyInvalidKey(t *testing.T) {
	tests := []string{
		"",
		"abcd",
		strings.Repeat("00", 31),
		strings.Repeat("00", 33),
		"not hex at all not hex at all not hex at all not hex at all not",
	}

	for _, privateKey := range tests {
		if _, err := DeriveLockingPubkey(privateKey); !errors.Is(err, ErrInvalidKeyLength) {
			t.Fatalf("expected ErrInvalidKeyLength for '%v' but got '%v'", privateKey, err)
		}
	}
}

func TestValidateKeyMatchesLock(t *testing.T) {
	keyPair := keyPairWithPrefix(t, "03")
	lockingPubkey, err := DeriveLockingPubkey(keyPair.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}

	otherKeyPair, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		privateKey string
		lockPubkey string
		expected   bool
	}{
		// normalized locking form
		{keyPair.PrivateKey, lockingPubkey, true},
		// natural compressed form stored before normalization existed
		{keyPair.PrivateKey, keyPair.PublicKey, true},
		{otherKeyPair.PrivateKey, lockingPubkey, false},
		{"nothex", lockingPubkey, false},
		{"", "", false},
	}

	for _, test := range tests {
		result := ValidateKeyMatchesLock(test.privateKey, test.lockPubkey)
		if result != test.expected {
			t.Fatalf("expected '%v' but got '%v' for lock '%v'", test.expected, result, test.lockPubkey)
		}
	}
}

func TestIsCompressedPubkey(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value    string
		expected bool
	}{
		{keyPair.PublicKey, true},
		{"03" + keyPair.PublicKey[2:], true},
		{"04" + keyPair.PublicKey[2:], false},
		{keyPair.PublicKey[2:], false},
		{keyPair.PublicKey + "ff", false},
		{"zz" + keyPair.PublicKey[2:], false},
		{"", false},
	}

	for _, test := range tests {
		result := IsCompressedPubkey(test.value)
		if result != test.expected {
			t.Fatalf("expected '%v' but got '%v' for '%v'", test.expected, result, test.value)
		}
	}
}

func TestCompressPublicKey(t *testing.T) {
	privateKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	compressed := hex.EncodeToString(privateKey.PubKey().SerializeCompressed())
	uncompressed := hex.EncodeToString(privateKey.PubKey().SerializeUncompressed())

	result, err := CompressPublicKey(uncompressed)
	if err != nil {
		t.Fatal(err)
	}
	if result != compressed {
		t.Fatalf("expected '%v' but got '%v' instead", compressed, result)
	}

	// already compressed keys pass through
	result, err = CompressPublicKey(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if result != compressed {
		t.Fatalf("expected '%v' but got '%v' instead", compressed, result)
	}

	invalid := []string{"", "02abcd", compressed[2:], uncompressed + "00"}
	for _, value := range invalid {
		if _, err := CompressPublicKey(value); !errors.Is(err, ErrInvalidKeyLength) {
			t.Fatalf("expected ErrInvalidKeyLength for '%v' but got '%v'", value, err)
		}
	}
}

func TestKeyPairFromSeed(t *testing.T) {
	first := KeyPairFromSeed([]byte("my wallet"))
	second := KeyPairFromSeed([]byte("my wallet"))
	if first != second {
		t.Fatalf("same seed produced different keypairs: '%v' and '%v'", first, second)
	}

	other := KeyPairFromSeed([]byte("another wallet"))
	if first == other {
		t.Fatal("different seeds produced the same keypair")
	}

	if len(first.PrivateKey) != 64 || len(first.PublicKey) != 66 {
		t.Fatalf("unexpected key lengths: %d and %d", len(first.PrivateKey), len(first.PublicKey))
	}
}

func TestKeyPairFromMnemonic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	first, err := KeyPairFromMnemonic(mnemonic)
	if err != nil {
		t.Fatal(err)
	}
	second, err := KeyPairFromMnemonic(mnemonic)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("same mnemonic produced different keypairs: '%v' and '%v'", first, second)
	}

	if !IsCompressedPubkey(first.PublicKey) {
		t.Fatalf("derived pubkey is not a compressed key: '%v'", first.PublicKey)
	}
}
