// Package cashu contains the core structs of the Cashu protocol
// needed to construct, carry and validate P2PK-locked ecash.
package cashu

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type Unit int

const (
	Sat Unit = iota
)

func (unit Unit) String() string {
	switch unit {
	case Sat:
		return "sat"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidUnit  = errors.New("invalid unit")
)

// Cashu Proof. See https://github.com/cashubtc/nuts/blob/main/00.md#proof
type Proof struct {
	Amount uint64 `json:"amount"`
	Id     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
	// witness is set at spend time, absent until then
	Witness string `json:"witness,omitempty"`
	// doing pointer here so that omitempty works.
	// an empty struct would still get marshalled
	DLEQ *DLEQProof `json:"dleq,omitempty"`
}

type Proofs []Proof

type DLEQProof struct {
	E string `json:"e"`
	S string `json:"s"`
	R string `json:"r,omitempty"`
}

// Amount returns the total amount from
// the array of Proof
func (proofs Proofs) Amount() uint64 {
	var totalAmount uint64 = 0
	for _, proof := range proofs {
		totalAmount += proof.Amount
	}
	return totalAmount
}

// Token carries a set of proofs from a single mint outside of a
// Nostr event (DMs, QR codes). Wire form is the V4 "cashuB"
// format: base64url-encoded CBOR.
type Token struct {
	TokenProofs []TokenProof `json:"t"`
	Memo        string       `json:"d,omitempty"`
	MintURL     string       `json:"m"`
	Unit        string       `json:"u"`
}

type TokenProof struct {
	Id     []byte      `json:"i"`
	Proofs []ProofWire `json:"p"`
}

func (tp *TokenProof) MarshalJSON() ([]byte, error) {
	tokenProof := struct {
		Id     string      `json:"i"`
		Proofs []ProofWire `json:"p"`
	}{
		Id:     hex.EncodeToString(tp.Id),
		Proofs: tp.Proofs,
	}
	return json.Marshal(tokenProof)
}

// ProofWire is the compact proof representation inside a Token.
type ProofWire struct {
	Amount  uint64    `json:"a"`
	Secret  string    `json:"s"`
	C       []byte    `json:"c"`
	Witness string    `json:"w,omitempty"`
	DLEQ    *DLEQWire `json:"d,omitempty"`
}

func (p *ProofWire) MarshalJSON() ([]byte, error) {
	proof := struct {
		Amount  uint64    `json:"a"`
		Secret  string    `json:"s"`
		C       string    `json:"c"`
		Witness string    `json:"w,omitempty"`
		DLEQ    *DLEQWire `json:"d,omitempty"`
	}{
		Amount:  p.Amount,
		Secret:  p.Secret,
		C:       hex.EncodeToString(p.C),
		Witness: p.Witness,
		DLEQ:    p.DLEQ,
	}
	return json.Marshal(proof)
}

type DLEQWire struct {
	E []byte `json:"e"`
	S []byte `json:"s"`
	R []byte `json:"r"`
}

func (d *DLEQWire) MarshalJSON() ([]byte, error) {
	dleq := DLEQProof{
		E: hex.EncodeToString(d.E),
		S: hex.EncodeToString(d.S),
		R: hex.EncodeToString(d.R),
	}
	return json.Marshal(dleq)
}

func NewToken(proofs Proofs, mint string, unit Unit) (Token, error) {
	if unit != Sat {
		return Token{}, ErrInvalidUnit
	}

	proofsMap := make(map[string][]ProofWire)
	for _, proof := range proofs {
		C, err := hex.DecodeString(proof.C)
		if err != nil {
			return Token{}, fmt.Errorf("invalid C: %v", err)
		}
		proofWire := ProofWire{
			Amount:  proof.Amount,
			Secret:  proof.Secret,
			C:       C,
			Witness: proof.Witness,
		}
		if proof.DLEQ != nil {
			e, err := hex.DecodeString(proof.DLEQ.E)
			if err != nil {
				return Token{}, fmt.Errorf("invalid e in DLEQ proof: %v", err)
			}
			s, err := hex.DecodeString(proof.DLEQ.S)
			if err != nil {
				return Token{}, fmt.Errorf("invalid s in DLEQ proof: %v", err)
			}
			if len(proof.DLEQ.R) == 0 {
				return Token{}, errors.New("r in DLEQ proof cannot be empty")
			}
			r, err := hex.DecodeString(proof.DLEQ.R)
			if err != nil {
				return Token{}, fmt.Errorf("invalid r in DLEQ proof: %v", err)
			}
			proofWire.DLEQ = &DLEQWire{E: e, S: s, R: r}
		}
		proofsMap[proof.Id] = append(proofsMap[proof.Id], proofWire)
	}

	tokenProofs := make([]TokenProof, len(proofsMap))
	i := 0
	for k, v := range proofsMap {
		keysetIdBytes, err := hex.DecodeString(k)
		if err != nil {
			return Token{}, fmt.Errorf("invalid keyset id: %v", err)
		}
		tokenProofs[i] = TokenProof{Id: keysetIdBytes, Proofs: v}
		i++
	}

	return Token{MintURL: mint, Unit: unit.String(), TokenProofs: tokenProofs}, nil
}

func DecodeToken(tokenstr string) (*Token, error) {
	if len(tokenstr) < 6 {
		return nil, ErrInvalidToken
	}
	prefixVersion := tokenstr[:6]
	base64Token := tokenstr[6:]
	if prefixVersion != "cashuB" {
		return nil, ErrInvalidToken
	}

	tokenBytes, err := base64.URLEncoding.DecodeString(base64Token)
	if err != nil {
		tokenBytes, err = base64.RawURLEncoding.DecodeString(base64Token)
		if err != nil {
			return nil, fmt.Errorf("error decoding token: %v", err)
		}
	}

	var token Token
	err = cbor.Unmarshal(tokenBytes, &token)
	if err != nil {
		return nil, fmt.Errorf("cbor.Unmarshal: %v", err)
	}

	return &token, nil
}

func (t Token) Proofs() Proofs {
	proofs := make(Proofs, 0)
	for _, tokenProof := range t.TokenProofs {
		keysetId := hex.EncodeToString(tokenProof.Id)
		for _, proofWire := range tokenProof.Proofs {
			proof := Proof{
				Amount:  proofWire.Amount,
				Id:      keysetId,
				Secret:  proofWire.Secret,
				C:       hex.EncodeToString(proofWire.C),
				Witness: proofWire.Witness,
			}
			if proofWire.DLEQ != nil {
				proof.DLEQ = &DLEQProof{
					E: hex.EncodeToString(proofWire.DLEQ.E),
					S: hex.EncodeToString(proofWire.DLEQ.S),
					R: hex.EncodeToString(proofWire.DLEQ.R),
				}
			}
			proofs = append(proofs, proof)
		}
	}
	return proofs
}

func (t Token) Mint() string {
	return t.MintURL
}

func (t Token) Amount() uint64 {
	return t.Proofs().Amount()
}

func (t Token) Serialize() (string, error) {
	cborData, err := cbor.Marshal(t)
	if err != nil {
		return "", err
	}

	token := "cashuB" + base64.RawURLEncoding.EncodeToString(cborData)
	return token, nil
}

type CashuErrCode int

// Error represents an error returned by a mint
type Error struct {
	Detail string       `json:"detail"`
	Code   CashuErrCode `json:"code"`
}

func BuildCashuError(detail string, code CashuErrCode) *Error {
	return &Error{Detail: detail, Code: code}
}

func (e Error) Error() string {
	return e.Detail
}

const (
	StandardErrCode     CashuErrCode = 10000
	InvalidProofErrCode CashuErrCode = 10003
)

var (
	InvalidProofErr = Error{Detail: "invalid proof", Code: InvalidProofErrCode}
)
