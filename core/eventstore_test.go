package core

import (
	"ledgermesh/pkg/crypto"
	"ledgermesh/pkg/store"
	"testing"
)

func TestEventStoreAppendAndRangeIterate(t *testing.T) {
	issuer := newTestIssuer(t)
	es := NewEventStore(store.NewMemStore())

	var hashes []string
	for i := uint64(1); i <= 10; i++ {
		env := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": "x", "amount": "1"}, int64(i), i, "", "")
		if err := es.Append(env, nil); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		hashes = append(hashes, env.Hash)
	}

	events, cursor, err := es.RangeIterate(nil, 5, 1<<20)
	if err != nil {
		t.Fatalf("range 1: %v", err)
	}
	if len(events) != 5 || cursor == nil {
		t.Fatalf("expected 5 events and a cursor, got %d events, cursor=%v", len(events), cursor)
	}
	for i, e := range events {
		if e.Hash != hashes[i] {
			t.Fatalf("event %d hash mismatch", i)
		}
	}

	rest, cursor2, err := es.RangeIterate(cursor, 10, 1<<20)
	if err != nil {
		t.Fatalf("range 2: %v", err)
	}
	if len(rest) != 5 || cursor2 != nil {
		t.Fatalf("expected remaining 5 events and no cursor, got %d, cursor=%v", len(rest), cursor2)
	}

	byHash, err := es.GetByHash(hashes[0])
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if byHash.Hash != hashes[0] {
		t.Fatal("hash index returned wrong event")
	}
}

func TestEventStoreLimitZeroReturnsEmptyNoCursorAdvance(t *testing.T) {
	issuer := newTestIssuer(t)
	es := NewEventStore(store.NewMemStore())
	env := mustEnvelope(t, issuer, "wallet.mint", map[string]string{"to": "x", "amount": "1"}, 1, 1, "", "")
	if err := es.Append(env, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, cursor, err := es.RangeIterate(nil, 0, 1<<20)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(events) != 0 || cursor != nil {
		t.Fatal("expected empty batch and no cursor advance for limit=0")
	}
}

func TestEventStoreResourcePrevConflictLeavesLogUntouched(t *testing.T) {
	issuer := newTestIssuer(t)
	es := NewEventStore(store.NewMemStore())

	env := mustEnvelope(t, issuer, "escrow.create", map[string]string{"id": "E"}, 1, 1, "", "")
	if err := es.Append(env, []HeadUpdate{{Kind: "escrow", ID: "E", NewHead: env.Hash, ExpectedPrev: ""}}); err != nil {
		t.Fatalf("first append: %v", err)
	}

	conflict := mustEnvelope(t, issuer, "escrow.fund", map[string]string{"id": "E"}, 2, 2, "", "")
	err := es.Append(conflict, []HeadUpdate{{Kind: "escrow", ID: "E", NewHead: conflict.Hash, ExpectedPrev: "stale"}})
	if err == nil {
		t.Fatal("expected resourcePrev conflict to be rejected")
	}

	last, err := es.LastApplied()
	if err != nil {
		t.Fatalf("last applied: %v", err)
	}
	if last != env.Hash {
		t.Fatal("expected rejected append to leave the log untouched")
	}
}

func TestEventStoreSnapshotRoundTrip(t *testing.T) {
	es := NewEventStore(store.NewMemStore())
	payload := []byte(`{"balances":{"a":"100"}}`)
	hash := crypto.SHA256Hex(payload)

	if err := es.SaveSnapshot(payload, hash); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := es.MarkLatestSnapshot(hash); err != nil {
		t.Fatalf("mark latest: %v", err)
	}

	got, gotHash, ok, err := es.LoadLatestSnapshot()
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if !ok || gotHash != hash || string(got) != string(payload) {
		t.Fatal("snapshot round trip mismatch")
	}
}

func TestEventStoreSnapshotRejectsHashMismatch(t *testing.T) {
	es := NewEventStore(store.NewMemStore())
	if err := es.SaveSnapshot([]byte("data"), "not-the-real-hash"); err == nil {
		t.Fatal("expected mismatched snapshot hash to be rejected")
	}
}
