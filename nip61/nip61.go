// Package nip61 implements the nutzap protocol from [NIP-61]: kind
// 10019 events advertising where a user receives P2PK-locked ecash,
// and kind 9321 events carrying the locked proofs themselves.
//
// Validators in this package are predicates over untrusted relay
// data. They never panic and never return errors, a malformed event is
// simply not a valid nutzap.
//
// [NIP-61]: https://github.com/nostr-protocol/nips/blob/master/61.md
package nip61

import (
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/openvine/nutzap/cashu"
	"github.com/openvine/nutzap/cashu/nuts/nut11"
)

const (
	KindNutzapInfo = 10019
	KindNutzap     = 9321
)

// IsValidP2PKProof reports whether a proof is structurally fit to be
// carried in a nutzap: positive amount, keyset id and commitment
// present, and a secret that parses as a P2PK lock to a 33-byte key
// in the normalized "02" form.
func IsValidP2PKProof(proof cashu.Proof) bool {
	if proof.Amount == 0 {
		return false
	}
	if proof.Id == "" || proof.C == "" {
		return false
	}

	secretData, err := nut11.ParseLockingSecret(proof.Secret)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(secretData.Data, "02") {
		return false
	}
	keyBytes, err := hex.DecodeString(secretData.Data)
	if err != nil {
		return false
	}
	return len(keyBytes) == 33
}

// IsValidNutzapInfoEvent reports whether an event is a well-formed
// kind 10019 nutzap info: empty content, at least one relay tag, at
// least one mint tag with an http(s) URL, and exactly one pubkey tag
// holding the 64-hex P2PK receiving key.
func IsValidNutzapInfoEvent(event *nostr.Event) bool {
	if event == nil || event.Kind != KindNutzapInfo {
		return false
	}
	if event.Content != "" {
		return false
	}

	var relayCount, mintCount, pubkeyCount int
	for _, tag := range event.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "relay":
			relayCount++
		case "mint":
			if !isValidMintURL(tag[1]) {
				return false
			}
			mintCount++
		case "pubkey":
			if !isHex32(tag[1]) {
				return false
			}
			pubkeyCount++
		}
	}

	return relayCount >= 1 && mintCount >= 1 && pubkeyCount == 1
}

// IsValidNutzapEvent reports whether an event is a well-formed kind
// 9321 nutzap: at least one proof tag, each parsing to a valid P2PK
// proof, at least one mint URL (u tag) and at least one recipient
// (p tag).
func IsValidNutzapEvent(event *nostr.Event) bool {
	if event == nil || event.Kind != KindNutzap {
		return false
	}

	var proofCount, mintCount, recipientCount int
	for _, tag := range event.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "proof":
			var proof cashu.Proof
			if err := json.Unmarshal([]byte(tag[1]), &proof); err != nil {
				return false
			}
			if !IsValidP2PKProof(proof) {
				return false
			}
			proofCount++
		case "u":
			mintCount++
		case "p":
			recipientCount++
		}
	}

	return proofCount >= 1 && mintCount >= 1 && recipientCount >= 1
}

// Proofs returns the proofs carried in a nutzap event's proof tags.
// Tags that fail to parse are skipped.
func Proofs(event *nostr.Event) cashu.Proofs {
	proofs := make(cashu.Proofs, 0)
	if event == nil {
		return proofs
	}
	for _, tag := range event.Tags {
		if len(tag) < 2 || tag[0] != "proof" {
			continue
		}
		var proof cashu.Proof
		if err := json.Unmarshal([]byte(tag[1]), &proof); err != nil {
			continue
		}
		proofs = append(proofs, proof)
	}
	return proofs
}

// Amount sums the amounts of all parseable proof tags. Unparseable
// proofs are skipped rather than counted as zero.
func Amount(event *nostr.Event) uint64 {
	return Proofs(event).Amount()
}

// MintURL returns the first u tag's value, or "" if there is none.
func MintURL(event *nostr.Event) string {
	return firstTagValue(event, "u")
}

// Recipient returns the first p tag's value, or "" if there is none.
func Recipient(event *nostr.Event) string {
	return firstTagValue(event, "p")
}

// ReferencedEvent returns the id of the nutzapped event (first e tag),
// or "" if the nutzap does not reference one.
func ReferencedEvent(event *nostr.Event) string {
	return firstTagValue(event, "e")
}

func firstTagValue(event *nostr.Event, name string) string {
	if event == nil {
		return ""
	}
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

func isValidMintURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isHex32(value string) bool {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}
