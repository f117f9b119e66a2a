// Package nut06 contains structs as defined in [NUT-06]
//
// [NUT-06]: https://github.com/cashubtc/nuts/blob/main/06.md
package nut06

type MintInfo struct {
	Name            string        `json:"name"`
	Pubkey          string        `json:"pubkey"`
	Version         string        `json:"version"`
	Description     string        `json:"description"`
	LongDescription string        `json:"description_long,omitempty"`
	Contact         []ContactInfo `json:"contact,omitempty"`
	Motd            string        `json:"motd,omitempty"`
	IconURL         string        `json:"icon_url,omitempty"`
	URLs            []string      `json:"urls,omitempty"`
	Time            int64         `json:"time,omitempty"`
	Nuts            Nuts          `json:"nuts"`
}

type ContactInfo struct {
	Method string `json:"method"`
	Info   string `json:"info"`
}

type Supported struct {
	Supported bool `json:"supported"`
}

// Nuts carries the subset of the advertised nut support map the
// nutzap protocol cares about: spending conditions (NUT-10), P2PK
// (NUT-11) and DLEQ proofs (NUT-12), plus proof state checks (NUT-07).
type Nuts struct {
	Nut07 Supported `json:"7"`
	Nut10 Supported `json:"10"`
	Nut11 Supported `json:"11"`
	Nut12 Supported `json:"12"`
}
