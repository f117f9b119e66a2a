package nip61

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/openvine/nutzap/cashu"
)

var (
	ErrNoMints     = errors.New("nutzap info needs at least one mint")
	ErrNoRelays    = errors.New("nutzap info needs at least one relay")
	ErrNoPubkey    = errors.New("nutzap info needs a P2PK receiving pubkey")
	ErrNoProofs    = errors.New("nutzap needs at least one proof")
	ErrNoMint      = errors.New("nutzap needs a mint URL")
	ErrNoRecipient = errors.New("nutzap needs a recipient")
)

// Info describes how a user receives nutzaps: the relays to publish
// to, the trusted mints, and the P2PK key proofs should be locked to.
type Info struct {
	PublicKey string
	Mints     []string
	Relays    []string
}

// ToEvent builds and signs the kind 10019 event advertising this info.
func (zi Info) ToEvent(secretKey string) (*nostr.Event, error) {
	if len(zi.Mints) == 0 {
		return nil, ErrNoMints
	}
	if len(zi.Relays) == 0 {
		return nil, ErrNoRelays
	}
	// the pubkey tag carries the 64-hex x coordinate; accept a
	// compressed locking key and strip its prefix byte
	pubkey := zi.PublicKey
	if len(pubkey) == 66 && (strings.HasPrefix(pubkey, "02") || strings.HasPrefix(pubkey, "03")) {
		pubkey = pubkey[2:]
	}
	if !isHex32(pubkey) {
		return nil, ErrNoPubkey
	}

	event := nostr.Event{
		Kind:      KindNutzapInfo,
		CreatedAt: nostr.Now(),
		Content:   "",
		Tags:      make(nostr.Tags, 0, len(zi.Mints)+len(zi.Relays)+1),
	}
	for _, relay := range zi.Relays {
		event.Tags = append(event.Tags, nostr.Tag{"relay", relay})
	}
	for _, mint := range zi.Mints {
		event.Tags = append(event.Tags, nostr.Tag{"mint", mint})
	}
	event.Tags = append(event.Tags, nostr.Tag{"pubkey", pubkey})

	if err := event.Sign(secretKey); err != nil {
		return nil, err
	}
	return &event, nil
}

// InfoFromEvent extracts the relay/mint/pubkey combination from a
// validated kind 10019 event.
func InfoFromEvent(event *nostr.Event) (Info, error) {
	if !IsValidNutzapInfoEvent(event) {
		return Info{}, errors.New("not a valid nutzap info event")
	}

	info := Info{}
	for _, tag := range event.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "relay":
			info.Relays = append(info.Relays, tag[1])
		case "mint":
			info.Mints = append(info.Mints, tag[1])
		case "pubkey":
			info.PublicKey = tag[1]
		}
	}
	return info, nil
}

// Nutzap is a tip of P2PK-locked proofs addressed to a recipient,
// optionally attached to one of their events.
type Nutzap struct {
	Proofs    cashu.Proofs
	Mint      string
	Recipient string
	// id of the nutzapped event, empty for a profile tip
	EventID string
	Comment string
}

// ToEvent builds and signs the kind 9321 event carrying the tip.
func (n Nutzap) ToEvent(secretKey string) (*nostr.Event, error) {
	if len(n.Proofs) == 0 {
		return nil, ErrNoProofs
	}
	if n.Mint == "" {
		return nil, ErrNoMint
	}
	if n.Recipient == "" {
		return nil, ErrNoRecipient
	}

	event := nostr.Event{
		Kind:      KindNutzap,
		CreatedAt: nostr.Now(),
		Content:   n.Comment,
		Tags:      make(nostr.Tags, 0, len(n.Proofs)+3),
	}
	for _, proof := range n.Proofs {
		proofJson, err := json.Marshal(proof)
		if err != nil {
			return nil, err
		}
		event.Tags = append(event.Tags, nostr.Tag{"proof", string(proofJson)})
	}
	event.Tags = append(event.Tags, nostr.Tag{"u", n.Mint})
	event.Tags = append(event.Tags, nostr.Tag{"p", n.Recipient})
	if n.EventID != "" {
		event.Tags = append(event.Tags, nostr.Tag{"e", n.EventID})
	}

	if err := event.Sign(secretKey); err != nil {
		return nil, err
	}
	return &event, nil
}
