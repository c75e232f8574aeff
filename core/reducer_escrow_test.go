package core

import "testing"

// TestEscrowPartialReleaseThenRefundOnExpiry reproduces scenario S2.
func TestEscrowPartialReleaseThenRefundOnExpiry(t *testing.T) {
	minter := newTestIssuer(t)
	depositor := newTestIssuer(t)
	beneficiary := newTestIssuer(t)

	s := NewState()
	s.GrantMintAuthority(minter.did)

	mint := mustEnvelope(t, minter, "wallet.mint", map[string]string{"to": depositor.address(), "amount": "1000"}, 0, 1, "", "")
	if _, err := Apply(s, mint); err != nil {
		t.Fatalf("mint: %v", err)
	}

	create := mustEnvelope(t, depositor, "escrow.create", map[string]interface{}{
		"id": "E", "depositor": depositor.address(), "beneficiary": beneficiary.address(),
		"amount": "300", "releaseRules": []string{"r1"}, "expiresAt": int64(100),
	}, 1, 1, "", "")
	heads, err := Apply(s, create)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	head := heads[0].NewHead

	fund := mustEnvelope(t, depositor, "escrow.fund", map[string]string{"id": "E", "amount": "300"}, 2, 2, "", head)
	heads, err = Apply(s, fund)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	head = heads[0].NewHead

	e, _ := s.Escrow("E")
	if e.Status != EscrowFunded {
		t.Fatalf("expected funded, got %s", e.Status)
	}

	release := mustEnvelope(t, depositor, "escrow.release", map[string]string{"id": "E", "amount": "100", "ruleId": "r1"}, 3, 3, "", head)
	heads, err = Apply(s, release)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	head = heads[0].NewHead

	e, _ = s.Escrow("E")
	if e.Status != EscrowReleasing {
		t.Fatalf("expected releasing, got %s", e.Status)
	}
	if s.Balance(beneficiary.address()).String() != "100" {
		t.Fatalf("expected beneficiary balance 100, got %s", s.Balance(beneficiary.address()))
	}

	refund := mustEnvelope(t, depositor, "escrow.refund", map[string]interface{}{
		"id": "E", "amount": "200", "reason": "expired",
	}, 101, 4, "", head)
	if _, err := Apply(s, refund); err != nil {
		t.Fatalf("refund: %v", err)
	}

	e, _ = s.Escrow("E")
	if e.Status != EscrowRefunded {
		t.Fatalf("expected refunded, got %s", e.Status)
	}
	if e.Remaining().Sign() != 0 {
		t.Fatalf("expected zero remaining, got %s", e.Remaining())
	}
	if s.Balance(depositor.address()).String() != "900" {
		t.Fatalf("expected depositor net -100 (900 remaining), got %s", s.Balance(depositor.address()))
	}
	if s.Balance(beneficiary.address()).String() != "100" {
		t.Fatalf("expected beneficiary net +100, got %s", s.Balance(beneficiary.address()))
	}
}

func TestEscrowRefundBeforeExpiryRejected(t *testing.T) {
	depositor := newTestIssuer(t)
	beneficiary := newTestIssuer(t)
	minter := newTestIssuer(t)
	s := NewState()
	s.GrantMintAuthority(minter.did)

	mint := mustEnvelope(t, minter, "wallet.mint", map[string]string{"to": depositor.address(), "amount": "50"}, 0, 1, "", "")
	if _, err := Apply(s, mint); err != nil {
		t.Fatalf("mint: %v", err)
	}

	create := mustEnvelope(t, depositor, "escrow.create", map[string]interface{}{
		"id": "E2", "depositor": depositor.address(), "beneficiary": beneficiary.address(),
		"amount": "50", "releaseRules": []string{"r1"}, "expiresAt": int64(1000),
	}, 1, 1, "", "")
	heads, err := Apply(s, create)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	head := heads[0].NewHead

	fund := mustEnvelope(t, depositor, "escrow.fund", map[string]string{"id": "E2", "amount": "50"}, 2, 2, "", head)
	heads, err = Apply(s, fund)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	head = heads[0].NewHead

	refund := mustEnvelope(t, depositor, "escrow.refund", map[string]interface{}{
		"id": "E2", "amount": "10", "reason": "expired",
	}, 5, 3, "", head)
	if _, err := Apply(s, refund); err == nil {
		t.Fatal("expected refund before expiry to fail")
	}
}
