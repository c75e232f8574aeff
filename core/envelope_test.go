package core

import "testing"

func TestEnvelopeFinalizeAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)
	env := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": "abc", "amount": "10"}, 1000, 1, "", "")

	if env.Hash == "" || env.Sig == "" {
		t.Fatal("expected hash and sig to be populated after finalize")
	}
	if err := env.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestEnvelopeVerifyRejectsTamperedPayload(t *testing.T) {
	issuer := newTestIssuer(t)
	env := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": "abc", "amount": "10"}, 1000, 1, "", "")
	env.Payload = []byte(`{"to":"abc","amount":"999999"}`)
	if err := env.Verify(); err == nil {
		t.Fatal("expected verify to fail after payload tampering")
	}
}

func TestEnvelopeFinalizeAndVerifyWithIntegerPayloadField(t *testing.T) {
	issuer := newTestIssuer(t)
	env := mustEnvelope(t, issuer, "market.listing.publish", map[string]interface{}{
		"id": "L1", "price": "10", "quantity": int64(5),
	}, 1000, 1, "", "")
	if err := env.Verify(); err != nil {
		t.Fatalf("verify envelope with bare integer payload field: %v", err)
	}
}

func TestEnvelopeFinalizeDeterministic(t *testing.T) {
	issuer := newTestIssuer(t)
	env1 := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": "abc", "amount": "10"}, 1000, 1, "", "")
	env2 := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": "abc", "amount": "10"}, 1000, 1, "", "")
	if env1.Sig != env2.Sig || env1.Hash != env2.Hash {
		t.Fatal("expected identical envelopes to finalize to identical hash and sig")
	}
}
