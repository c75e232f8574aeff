package core

import (
	"testing"

	"ledgermesh/pkg/store"
)

// TestWalletTransferDeterministic reproduces scenario S1: mint 1000 to A,
// transfer 400 (fee 1) from A to B, and check that replaying the same two
// events into a fresh state yields identical balances.
func TestWalletTransferDeterministic(t *testing.T) {
	minter := newTestIssuer(t)
	a := newTestIssuer(t)
	b := newTestIssuer(t)

	run := func() (string, string, string) {
		s := NewState()
		s.GrantMintAuthority(minter.did)
		es := NewEventStore(store.NewMemStore())

		mint := mustEnvelope(t, minter, "wallet.mint", map[string]string{"to": a.address(), "amount": "1000"}, 1000, 1, "", "")
		heads, err := Apply(s, mint)
		if err != nil {
			t.Fatalf("apply mint: %v", err)
		}
		if err := es.Append(mint, heads); err != nil {
			t.Fatalf("append mint: %v", err)
		}

		transfer := mustEnvelope(t, a, "wallet.transfer", map[string]string{
			"from": a.address(), "to": b.address(), "amount": "400", "fee": "1",
		}, 1001, 1, "", "")
		heads, err = Apply(s, transfer)
		if err != nil {
			t.Fatalf("apply transfer: %v", err)
		}
		if err := es.Append(transfer, heads); err != nil {
			t.Fatalf("append transfer: %v", err)
		}

		return s.Balance(a.address()).String(), s.Balance(b.address()).String(), s.FeePool.String()
	}

	balA1, balB1, fee1 := run()
	if balA1 != "599" || balB1 != "400" || fee1 != "1" {
		t.Fatalf("unexpected balances: A=%s B=%s fee=%s", balA1, balB1, fee1)
	}

	balA2, balB2, fee2 := run()
	if balA1 != balA2 || balB1 != balB2 || fee1 != fee2 {
		t.Fatal("expected replay to produce identical balances")
	}
}

func TestWalletMintRequiresAuthority(t *testing.T) {
	issuer := newTestIssuer(t)
	s := NewState()
	env := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": issuer.address(), "amount": "10"}, 1, 1, "", "")
	if _, err := Apply(s, env); err == nil {
		t.Fatal("expected mint without authority to fail")
	}
}

func TestWalletTransferInsufficientBalance(t *testing.T) {
	a := newTestIssuer(t)
	b := newTestIssuer(t)
	s := NewState()
	env := mustEnvelope(t, a, "wallet.transfer", map[string]string{
		"from": a.address(), "to": b.address(), "amount": "10", "fee": "0",
	}, 1, 1, "", "")
	if _, err := Apply(s, env); err == nil {
		t.Fatal("expected transfer from empty balance to fail")
	}
}
