package publish

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"ledgermesh/core"
	"ledgermesh/pkg/crypto"
	"ledgermesh/pkg/store"
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

func unsignedEnvelope(t *testing.T, issuer testIssuer, typ string, payload interface{}, ts int64, nonce uint64, prev, resourcePrev string) *core.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	pub, err := crypto.Multibase(issuer.pub)
	if err != nil {
		t.Fatalf("multibase: %v", err)
	}
	return core.BuildEnvelope(typ, issuer.did, raw, ts, nonce, prev, resourcePrev, pub)
}

func newPipeline() (*Pipeline, *core.EventStore, *core.State) {
	es := core.NewEventStore(store.NewMemStore())
	state := core.NewState()
	return New(es, state, nil, nil), es, state
}

func TestPipelinePublishSignsAndCommits(t *testing.T) {
	p, es, state := newPipeline()
	issuer := newTestIssuer(t)
	state.GrantMintAuthority(issuer.did)

	env := unsignedEnvelope(t, issuer, "wallet.mint", map[string]string{"to": issuer.address(), "amount": "100"}, 1, 1, "", "")
	hash, err := p.Publish(context.Background(), env, issuer.priv)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if hash == "" || env.Sig == "" {
		t.Fatal("expected publish to sign and return a hash")
	}

	stored, err := es.GetByHash(hash)
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if stored.Hash != hash {
		t.Fatal("event store does not contain the published event")
	}
	if state.Balance(issuer.address()).Sign() != 1 {
		t.Fatal("expected reducer to have applied the mint")
	}
}

func TestPipelinePublishSameHashIsIdempotent(t *testing.T) {
	p, _, state := newPipeline()
	issuer := newTestIssuer(t)
	state.GrantMintAuthority(issuer.did)

	env := unsignedEnvelope(t, issuer, "wallet.mint", map[string]string{"to": issuer.address(), "amount": "50"}, 1, 1, "", "")
	first, err := p.Publish(context.Background(), env, issuer.priv)
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}

	second, err := p.Publish(context.Background(), env, nil)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if second != first {
		t.Fatal("expected resubmission of the same hash to be a no-op returning the same hash")
	}
	if state.Balance(issuer.address()).String() != "50" {
		t.Fatal("expected idempotent resubmission not to double-apply the mint")
	}
}

func TestPipelinePublishRejectsUnsignedWithoutKey(t *testing.T) {
	p, _, _ := newPipeline()
	issuer := newTestIssuer(t)

	env := unsignedEnvelope(t, issuer, "wallet.mint", map[string]string{"to": issuer.address(), "amount": "1"}, 1, 1, "", "")
	if _, err := p.Publish(context.Background(), env, nil); err == nil {
		t.Fatal("expected an unsigned envelope with no signing key to be rejected")
	}
}

func (i testIssuer) address() string {
	return crypto.AddressFromPublicKey(i.pub).String()
}
