// Package nut10 implements the well-known secret format defined in [NUT-10]
// used to attach spending conditions to ecash.
//
// [NUT-10]: https://github.com/cashubtc/nuts/blob/main/10.md
package nut10

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openvine/nutzap/cashu"
)

// ErrMalformedSecret is returned when a secret string does not parse
// into the 2-element ["<kind>", {...}] structure.
var ErrMalformedSecret = errors.New("malformed well-known secret")

type SecretKind int

const (
	AnyoneCanSpend SecretKind = iota
	P2PK
	HTLC
)

func (kind SecretKind) String() string {
	switch kind {
	case P2PK:
		return "P2PK"
	case HTLC:
		return "HTLC"
	default:
		return "anyonecanspend"
	}
}

type WellKnownSecret struct {
	Nonce string     `json:"nonce"`
	Data  string     `json:"data"`
	Tags  [][]string `json:"tags,omitempty"`
}

// SecretKindOf reports the spending-condition kind of a raw secret string.
// Secrets that are not valid well-known secrets are random secrets
// spendable by anyone.
func SecretKindOf(secret string) SecretKind {
	var rawJsonSecret []json.RawMessage
	if err := json.Unmarshal([]byte(secret), &rawJsonSecret); err != nil {
		return AnyoneCanSpend
	}

	if len(rawJsonSecret) != 2 {
		return AnyoneCanSpend
	}

	var kind string
	if err := json.Unmarshal(rawJsonSecret[0], &kind); err != nil {
		return AnyoneCanSpend
	}

	switch kind {
	case "P2PK":
		return P2PK
	case "HTLC":
		return HTLC
	}

	return AnyoneCanSpend
}

func SecretType(proof cashu.Proof) SecretKind {
	return SecretKindOf(proof.Secret)
}

// SerializeSecret returns the json string to be put in the secret field of a proof
func SerializeSecret(kind SecretKind, secretData WellKnownSecret) (string, error) {
	jsonSecret, err := json.Marshal(secretData)
	if err != nil {
		return "", err
	}

	secret := fmt.Sprintf("[\"%s\", %v]", kind, string(jsonSecret))
	return secret, nil
}

// DeserializeSecret parses a secret string into its well-known structure.
// The kind of the secret is returned alongside the data so that callers
// can reject conditions they do not handle.
func DeserializeSecret(secret string) (SecretKind, WellKnownSecret, error) {
	var rawJsonSecret []json.RawMessage
	if err := json.Unmarshal([]byte(secret), &rawJsonSecret); err != nil {
		return AnyoneCanSpend, WellKnownSecret{}, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}

	if len(rawJsonSecret) != 2 {
		return AnyoneCanSpend, WellKnownSecret{}, fmt.Errorf("%w: expected 2 elements, got %d",
			ErrMalformedSecret, len(rawJsonSecret))
	}

	var kindStr string
	if err := json.Unmarshal(rawJsonSecret[0], &kindStr); err != nil {
		return AnyoneCanSpend, WellKnownSecret{}, fmt.Errorf("%w: invalid kind", ErrMalformedSecret)
	}

	var kind SecretKind
	switch kindStr {
	case "P2PK":
		kind = P2PK
	case "HTLC":
		kind = HTLC
	default:
		return AnyoneCanSpend, WellKnownSecret{}, fmt.Errorf("%w: unknown kind '%s'",
			ErrMalformedSecret, kindStr)
	}

	var secretData WellKnownSecret
	if err := json.Unmarshal(rawJsonSecret[1], &secretData); err != nil {
		return AnyoneCanSpend, WellKnownSecret{}, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	if secretData.Nonce == "" || secretData.Data == "" {
		return AnyoneCanSpend, WellKnownSecret{}, fmt.Errorf("%w: missing nonce or data",
			ErrMalformedSecret)
	}

	return kind, secretData, nil
}
