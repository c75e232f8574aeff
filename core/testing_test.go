package core

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"ledgermesh/pkg/crypto"
)

type testIssuer struct {
	did  string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestIssuer(t *testing.T) testIssuer {
	t.Helper()
	pub, priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	did, err := crypto.DIDFromPublicKey(pub)
	if err != nil {
		t.Fatalf("did from pub: %v", err)
	}
	return testIssuer{did: did, pub: pub, priv: priv}
}

func (i testIssuer) address() string {
	return crypto.AddressFromPublicKey(i.pub).String()
}

func mustEnvelope(t *testing.T, issuer testIssuer, typ string, payload interface{}, ts int64, nonce uint64, prev, resourcePrev string) *Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	pub, err := crypto.Multibase(issuer.pub)
	if err != nil {
		t.Fatalf("multibase: %v", err)
	}
	env := BuildEnvelope(typ, issuer.did, raw, ts, nonce, prev, resourcePrev, pub)
	if err := env.Finalize(issuer.priv); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return env
}
