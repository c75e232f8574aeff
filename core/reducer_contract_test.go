package core

import "testing"

// TestContractSignResourcePrevConflict reproduces scenario S3: two signs
// racing against the same resourcePrev, one must win and one must fail with
// RESOURCE_PREV_CONFLICT, after which a sign against the new head succeeds.
func TestContractSignResourcePrevConflict(t *testing.T) {
	client := newTestIssuer(t)
	provider := newTestIssuer(t)
	s := NewState()

	create := mustEnvelope(t, client, "contract.create", map[string]interface{}{
		"id": "C", "client": client.address(), "provider": provider.address(),
		"milestones": []map[string]string{{"id": "m1", "amount": "50"}},
	}, 1, 1, "", "")
	heads, err := Apply(s, create)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h0 := heads[0].NewHead

	first := mustEnvelope(t, client, "contract.sign", map[string]string{"id": "C"}, 2, 2, "", h0)
	heads, err = Apply(s, first)
	if err != nil {
		t.Fatalf("first sign: %v", err)
	}
	h1 := heads[0].NewHead

	second := mustEnvelope(t, provider, "contract.sign", map[string]string{"id": "C"}, 2, 1, "", h0)
	if _, err := Apply(s, second); err == nil {
		t.Fatal("expected second sign against stale resourcePrev to fail")
	}

	third := mustEnvelope(t, provider, "contract.sign", map[string]string{"id": "C"}, 3, 2, "", h1)
	if _, err := Apply(s, third); err != nil {
		t.Fatalf("third sign against current head: %v", err)
	}
}
