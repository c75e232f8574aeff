package core

import "testing"

func TestIdentityCreateUpdateAndCapabilityRegister(t *testing.T) {
	alice := newTestIssuer(t)
	s := NewState()

	create := mustEnvelope(t, alice, "identity.create", map[string]string{"did": alice.did}, 0, 1, "", "")
	if _, err := Apply(s, create); err != nil {
		t.Fatalf("create identity: %v", err)
	}

	dup := mustEnvelope(t, alice, "identity.create", map[string]string{"did": alice.did}, 1, 2, "", "")
	if _, err := Apply(s, dup); err == nil {
		t.Fatal("expected duplicate identity.create to fail")
	}

	bob := newTestIssuer(t)
	forged := mustEnvelope(t, bob, "identity.create", map[string]string{"did": alice.did}, 0, 1, "", "")
	if _, err := Apply(s, forged); err == nil {
		t.Fatal("expected identity.create for another DID to fail")
	}

	register := mustEnvelope(t, alice, "identity.capability.register", map[string]string{
		"did": alice.did, "credential": "cred-1",
	}, 2, 3, "", "")
	if _, err := Apply(s, register); err != nil {
		t.Fatalf("register capability: %v", err)
	}

	badCred := mustEnvelope(t, alice, "identity.capability.register", map[string]string{
		"did": alice.did, "credential": "",
	}, 3, 4, "", "")
	if _, err := Apply(s, badCred); err == nil {
		t.Fatal("expected empty credential to fail verification")
	}
}
