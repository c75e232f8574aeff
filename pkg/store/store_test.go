package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func runKVContract(t *testing.T, kv KV) {
	t.Helper()

	if _, err := kv.Get([]byte("missing")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := kv.Put([]byte("a/1"), []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put([]byte("a/2"), []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put([]byte("b/1"), []byte("three")); err != nil {
		t.Fatalf("put: %v", err)
	}

	v, err := kv.Get([]byte("a/1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(v, []byte("one")) {
		t.Fatalf("got %s, want one", v)
	}

	it := kv.Iterator([]byte("a/"))
	defer it.Release()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(got) != 2 || got[0] != "a/1" || got[1] != "a/2" {
		t.Fatalf("unexpected prefix scan result: %v", got)
	}

	if err := kv.Delete([]byte("a/1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kv.Get([]byte("a/1")); err != ErrNotFound {
		t.Fatalf("expected deleted key to be gone, got %v", err)
	}

	b := kv.NewBatch()
	b.Set([]byte("c/1"), []byte("batched"))
	b.Delete([]byte("b/1"))
	if err := kv.WriteBatch(b); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if _, err := kv.Get([]byte("b/1")); err != ErrNotFound {
		t.Fatalf("expected batched delete to apply")
	}
	v, err = kv.Get([]byte("c/1"))
	if err != nil || !bytes.Equal(v, []byte("batched")) {
		t.Fatalf("expected batched set to apply, got %s err %v", v, err)
	}
}

func TestMemStoreContract(t *testing.T) {
	runKVContract(t, NewMemStore())
}

func TestLevelStoreContract(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "ledgermesh-store-test")
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := OpenLevelStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	runKVContract(t, db)
}
