package core

import "testing"

func TestListingPublishBidAcceptLifecycle(t *testing.T) {
	seller := newTestIssuer(t)
	bidder := newTestIssuer(t)
	s := NewState()

	publish := mustEnvelope(t, seller, "market.listing.publish", map[string]interface{}{
		"id": "L1", "price": "10", "quantity": int64(5),
	}, 0, 1, "", "")
	heads, err := Apply(s, publish)
	if err != nil {
		t.Fatalf("publish listing: %v", err)
	}
	listingHead := heads[0].NewHead

	l, ok := s.Listing("L1")
	if !ok || l.Status != ListingActive {
		t.Fatalf("expected active listing, got %+v ok=%v", l, ok)
	}

	submit := mustEnvelope(t, bidder, "market.bid.submit", map[string]interface{}{
		"id": "B1", "listingId": "L1", "amount": "9",
	}, 1, 1, "", "")
	heads, err = Apply(s, submit)
	if err != nil {
		t.Fatalf("submit bid: %v", err)
	}
	bidHead := heads[0].NewHead

	b, ok := s.Bid("B1")
	if !ok || b.Status != BidSubmitted {
		t.Fatalf("expected submitted bid, got %+v ok=%v", b, ok)
	}

	accept := mustEnvelope(t, seller, "market.bid.accept", map[string]interface{}{
		"id": "B1",
	}, 2, 2, "", bidHead)
	if _, err := Apply(s, accept); err != nil {
		t.Fatalf("accept bid: %v", err)
	}

	b, _ = s.Bid("B1")
	if b.Status != BidAccepted {
		t.Fatalf("expected accepted, got %s", b.Status)
	}

	// a second bid on the same listing cannot also be accepted.
	other := newTestIssuer(t)
	submit2 := mustEnvelope(t, other, "market.bid.submit", map[string]interface{}{
		"id": "B2", "listingId": "L1", "amount": "9",
	}, 1, 1, "", "")
	if _, err := Apply(s, submit2); err != nil {
		t.Fatalf("submit second bid: %v", err)
	}
	accept2 := mustEnvelope(t, seller, "market.bid.accept", map[string]interface{}{
		"id": "B2",
	}, 3, 3, "", listingHead)
	if _, err := Apply(s, accept2); err == nil {
		t.Fatal("expected second accept on the same listing to fail")
	}
}

func TestLeaseInvokeExhaustsAtUnitLimit(t *testing.T) {
	seller := newTestIssuer(t)
	lessee := newTestIssuer(t)
	s := NewState()

	publish := mustEnvelope(t, seller, "market.listing.publish", map[string]interface{}{
		"id": "L2", "price": "1", "quantity": int64(100),
	}, 0, 1, "", "")
	if _, err := Apply(s, publish); err != nil {
		t.Fatalf("publish listing: %v", err)
	}

	create := mustEnvelope(t, lessee, "market.lease.create", map[string]interface{}{
		"id": "LS1", "listingId": "L2", "unitsLimit": int64(10), "expiresAt": int64(0),
	}, 0, 1, "", "")
	heads, err := Apply(s, create)
	if err != nil {
		t.Fatalf("create lease: %v", err)
	}
	head := heads[0].NewHead

	invoke := mustEnvelope(t, lessee, "market.lease.invoke", map[string]interface{}{
		"id": "LS1", "units": int64(6),
	}, 1, 2, "", head)
	heads, err = Apply(s, invoke)
	if err != nil {
		t.Fatalf("first invoke: %v", err)
	}
	head = heads[0].NewHead

	lease, ok := s.Lease("LS1")
	if !ok || lease.Status != LeaseActive {
		t.Fatalf("expected lease still active after 6/10 units, got %+v ok=%v", lease, ok)
	}

	invoke2 := mustEnvelope(t, lessee, "market.lease.invoke", map[string]interface{}{
		"id": "LS1", "units": int64(4),
	}, 2, 3, "", head)
	heads, err = Apply(s, invoke2)
	if err != nil {
		t.Fatalf("second invoke: %v", err)
	}
	head = heads[0].NewHead

	lease, _ = s.Lease("LS1")
	if lease.Status != LeaseExhausted {
		t.Fatalf("expected exhausted, got %s", lease.Status)
	}
	if lease.UnitsUsed != 10 {
		t.Fatalf("expected 10 units used, got %d", lease.UnitsUsed)
	}

	invoke3 := mustEnvelope(t, lessee, "market.lease.invoke", map[string]interface{}{
		"id": "LS1", "units": int64(1),
	}, 3, 4, "", head)
	if _, err := Apply(s, invoke3); err == nil {
		t.Fatal("expected invoke on an exhausted lease to fail")
	}
}
