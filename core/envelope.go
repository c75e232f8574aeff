package core

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"ledgermesh/pkg/crypto"
)

// MaxEventSize is the hard bound on a serialized envelope, enforced at the
// publish pipeline and at sync ingress. It is a fixed constant; no node
// configuration setting changes it.
const MaxEventSize = 64 * 1024

// NonceWindow is the number of most-recent nonces retained per issuer to
// tolerate reordered delivery while still detecting replay. The source
// material left this implicit; we name it explicitly per the open question
// in the spec rather than guess a production value.
const NonceWindow = 256

// Envelope is the universal unit of the event log: a typed, signed,
// content-addressed record. Fields mirror the wire schema exactly so that
// canonicalization over the struct (minus Sig/Hash) matches the wire form.
type Envelope struct {
	V            int             `json:"v"`
	Type         string          `json:"type"`
	Issuer       string          `json:"issuer"`
	TS           int64           `json:"ts"`
	Nonce        uint64          `json:"nonce"`
	Payload      json.RawMessage `json:"payload"`
	Prev         string          `json:"prev,omitempty"`
	ResourcePrev string          `json:"resourcePrev,omitempty"`
	Pub          string          `json:"pub"`
	Sig          string          `json:"sig,omitempty"`
	Hash         string          `json:"hash,omitempty"`
}

// BuildEnvelope assembles an envelope with empty Sig/Hash, ready for
// Finalize. pub must be the multibase encoding of the signer's Ed25519
// public key.
func BuildEnvelope(typ, issuer string, payload json.RawMessage, ts int64, nonce uint64, prev, resourcePrev, pub string) *Envelope {
	return &Envelope{
		V:            1,
		Type:         typ,
		Issuer:       issuer,
		TS:           ts,
		Nonce:        nonce,
		Payload:      payload,
		Prev:         prev,
		ResourcePrev: resourcePrev,
		Pub:          pub,
	}
}

// signingView returns the map form of the envelope excluding sig and hash,
// suitable for canonicalization — both for hashing and for signing.
func (e *Envelope) signingView() (map[string]interface{}, error) {
	var payload interface{}
	if len(e.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(e.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("%w: payload: %v", crypto.ErrCanonicalize, err)
		}
	}
	m := map[string]interface{}{
		"v":       int64(e.V),
		"type":    e.Type,
		"issuer":  e.Issuer,
		"ts":      e.TS,
		"nonce":   int64(e.Nonce),
		"payload": payload,
		"pub":     e.Pub,
	}
	if e.Prev != "" {
		m["prev"] = e.Prev
	}
	if e.ResourcePrev != "" {
		m["resourcePrev"] = e.ResourcePrev
	}
	return m, nil
}

// CanonicalBytes returns the canonical JSON form of the envelope excluding
// sig and hash — the exact bytes that are hashed and signed.
func (e *Envelope) CanonicalBytes() ([]byte, error) {
	view, err := e.signingView()
	if err != nil {
		return nil, err
	}
	return crypto.Canonicalize(view)
}

// Finalize computes Hash and Sig over the canonical form and freezes the
// envelope. Ed25519 is deterministic, so calling Finalize twice on an
// unmodified envelope with the same key yields byte-identical output.
func (e *Envelope) Finalize(priv ed25519.PrivateKey) error {
	canon, err := e.CanonicalBytes()
	if err != nil {
		return err
	}
	sum := crypto.SHA256(canon)
	e.Hash = hexEncode(sum[:])
	sig, err := crypto.Sign(priv, canon)
	if err != nil {
		return err
	}
	e.Sig = hexEncode(sig)
	return nil
}

// Verify checks that issuer matches the embedded public key, recomputes the
// hash over the canonical form, and verifies the signature.
func (e *Envelope) Verify() error {
	if len(marshalSize(e)) > MaxEventSize {
		return fmt.Errorf("%w: envelope exceeds %d bytes", ErrEventTooLarge, MaxEventSize)
	}
	pub, err := crypto.PublicKeyFromDID(e.Issuer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDIDInvalid, err)
	}
	wantPub, err := crypto.Multibase(pub)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDIDInvalid, err)
	}
	if wantPub != e.Pub {
		return fmt.Errorf("%w: pub field does not match issuer DID", ErrDIDInvalid)
	}

	canon, err := e.CanonicalBytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEventHashMismatch, err)
	}
	sum := crypto.SHA256(canon)
	if hexEncode(sum[:]) != e.Hash {
		return fmt.Errorf("%w: recomputed hash does not match envelope.hash", ErrEventHashMismatch)
	}
	sig, err := hexDecode(e.Sig)
	if err != nil {
		return fmt.Errorf("%w: malformed sig: %v", ErrEventSignatureInvalid, err)
	}
	if !crypto.Verify(pub, canon, sig) {
		return fmt.Errorf("%w: signature does not verify", ErrEventSignatureInvalid)
	}
	return nil
}

func marshalSize(e *Envelope) []byte {
	b, _ := json.Marshal(e)
	return b
}
