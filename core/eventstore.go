package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"ledgermesh/pkg/crypto"
	"ledgermesh/pkg/store"
)

// Key prefixes for the persisted layout described in the external
// interfaces section: log/<rank>, hash_index/<hash>, resource_head/<kind>/<id>,
// snapshot/<hash>, meta/last_applied.
const (
	prefixLog          = "log/"
	prefixHashIndex    = "hash_index/"
	prefixResourceHead = "resource_head/"
	prefixSnapshot     = "snapshot/"
	keyMetaLastApplied = "meta/last_applied"
	keyMetaRankCounter = "meta/rank_counter"
	keyMetaSnapshotLow = "meta/snapshot_low_rank"
)

// HeadUpdate is a resource-chain head mutation the caller wants applied
// atomically with a log append. ExpectedPrev is the head the caller observed
// before computing NewHead; if the store's current head differs, the whole
// append is rejected with RESOURCE_PREV_CONFLICT.
type HeadUpdate struct {
	Kind         string
	ID           string
	NewHead      string
	ExpectedPrev string
}

// EventStore is the append-only log keyed by insertion rank, with a
// hash-keyed random access index and a resource-chain head table, backed by
// any store.KV implementation. All appends are serialized by a single
// writer lock, matching the concurrency model's single-writer requirement.
type EventStore struct {
	mu sync.Mutex
	kv store.KV
}

// NewEventStore wraps kv as an event store. kv may already contain data from
// a previous run; no initialization write is required.
func NewEventStore(kv store.KV) *EventStore {
	return &EventStore{kv: kv}
}

func rankKey(rank uint64) []byte {
	b := make([]byte, len(prefixLog)+8)
	copy(b, prefixLog)
	binary.BigEndian.PutUint64(b[len(prefixLog):], rank)
	return b
}

func hashIndexKey(hash string) []byte {
	return []byte(prefixHashIndex + hash)
}

func headKey(kind, id string) []byte {
	return []byte(prefixResourceHead + kind + "/" + id)
}

func (s *EventStore) nextRank() (uint64, error) {
	v, err := s.kv.Get([]byte(keyMetaRankCounter))
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("%w: rank counter corrupt", ErrStoreCorrupt)
	}
	return binary.BigEndian.Uint64(v), nil
}

// ResourceHead returns the current head hash for (kind, id) and whether one
// exists.
func (s *EventStore) ResourceHead(kind, id string) (string, bool, error) {
	v, err := s.kv.Get(headKey(kind, id))
	if err == store.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return string(v), true, nil
}

// GetByHash fetches and decodes a single event by its content hash.
func (s *EventStore) GetByHash(hash string) (*Envelope, error) {
	rv, err := s.kv.Get(hashIndexKey(hash))
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if len(rv) != 8 {
		return nil, fmt.Errorf("%w: hash index corrupt", ErrStoreCorrupt)
	}
	rank := binary.BigEndian.Uint64(rv)
	raw, err := s.kv.Get(rankKey(rank))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return &env, nil
}

// Append persists env at the next rank and atomically applies the given
// resource head updates. If any head update's ExpectedPrev does not match
// the store's current head for that (kind, id), the append is aborted and
// the log is left untouched.
func (s *EventStore) Append(env *Envelope, heads []HeadUpdate) error {
	canon, err := env.CanonicalBytes()
	if err != nil {
		return err
	}
	if len(canon) > MaxEventSize {
		return fmt.Errorf("%w: canonical form exceeds %d bytes", ErrEventTooLarge, MaxEventSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range heads {
		cur, ok, err := s.ResourceHead(h.Kind, h.ID)
		if err != nil {
			return err
		}
		if ok && cur != h.ExpectedPrev {
			return fmt.Errorf("%w: %s/%s head is %s, expected %s", ErrResourcePrevConflict, h.Kind, h.ID, cur, h.ExpectedPrev)
		}
		if !ok && h.ExpectedPrev != "" {
			return fmt.Errorf("%w: %s/%s has no head, expected %s", ErrResourcePrevConflict, h.Kind, h.ID, h.ExpectedPrev)
		}
	}

	rank, err := s.nextRank()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}

	b := s.kv.NewBatch()
	b.Set(rankKey(rank), raw)
	rv := make([]byte, 8)
	binary.BigEndian.PutUint64(rv, rank)
	b.Set(hashIndexKey(env.Hash), rv)
	for _, h := range heads {
		b.Set(headKey(h.Kind, h.ID), []byte(h.NewHead))
	}
	nextRV := make([]byte, 8)
	binary.BigEndian.PutUint64(nextRV, rank+1)
	b.Set([]byte(keyMetaRankCounter), nextRV)
	b.Set([]byte(keyMetaLastApplied), []byte(env.Hash))

	if err := s.kv.WriteBatch(b); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// RangeIterate returns events starting at cursor (nil means genesis), up to
// limit events and maxBytes of serialized payload, whichever binds first.
// It returns the next cursor, or nil if the end of the log was reached.
func (s *EventStore) RangeIterate(cursor *uint64, limit int, maxBytes int) ([]*Envelope, *uint64, error) {
	if limit == 0 {
		return nil, cursor, nil
	}
	start := uint64(0)
	if cursor != nil {
		start = *cursor
	}
	tail, err := s.nextRank()
	if err != nil {
		return nil, nil, err
	}

	var out []*Envelope
	used := 0
	rank := start
	for rank < tail && len(out) < limit {
		raw, err := s.kv.Get(rankKey(rank))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		if used+len(raw) > maxBytes && len(out) > 0 {
			break
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		out = append(out, &env)
		used += len(raw)
		rank++
	}
	if rank >= tail {
		return out, nil, nil
	}
	next := rank
	return out, &next, nil
}

// SaveSnapshot persists snapshot bytes under their SHA-256 hash, rejecting
// the write if the caller-supplied hash does not match.
func (s *EventStore) SaveSnapshot(snapshotBytes []byte, hash string) error {
	if crypto.SHA256Hex(snapshotBytes) != hash {
		return fmt.Errorf("%w: snapshot hash does not match content", ErrStoreCorrupt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Put([]byte(prefixSnapshot+hash), snapshotBytes); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// LoadLatestSnapshot returns the snapshot last recorded by
// MarkLatestSnapshot, if any. Only that one hash is kept in meta; earlier
// snapshots stay stored under their own keys but this call no longer
// returns them.
func (s *EventStore) LoadLatestSnapshot() ([]byte, string, bool, error) {
	hv, err := s.kv.Get([]byte(keyMetaSnapshotLow))
	if err == store.ErrNotFound {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	hash := string(hv)
	b, err := s.kv.Get([]byte(prefixSnapshot + hash))
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return b, hash, true, nil
}

// MarkLatestSnapshot records hash as the most recent snapshot pointer, used
// after SaveSnapshot to make it discoverable by LoadLatestSnapshot.
func (s *EventStore) MarkLatestSnapshot(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Put([]byte(keyMetaSnapshotLow), []byte(hash)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// LastApplied returns the hash of the most recently appended event, or ""
// if the log is empty.
func (s *EventStore) LastApplied() (string, error) {
	v, err := s.kv.Get([]byte(keyMetaLastApplied))
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return string(v), nil
}
