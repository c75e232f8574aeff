package gossip

import "encoding/json"

// Topic names for the three pubsub subscriptions the sync engine joins.
const (
	TopicEvents    = "events"
	TopicRequests  = "requests"
	TopicResponses = "responses"
)

// RangeRequest asks a peer for log entries starting at a cursor. A nil From
// requests from genesis.
type RangeRequest struct {
	From  *uint64 `json:"from"`
	Limit int     `json:"limit"`
}

// RangeResponse carries a batch of canonical-JSON-encoded event envelopes
// and the next cursor, if any.
type RangeResponse struct {
	Events     []json.RawMessage `json:"events"`
	NextCursor *uint64           `json:"nextCursor,omitempty"`
}

// SnapshotRequest asks a peer for its latest snapshot.
type SnapshotRequest struct {
	From *uint64 `json:"from,omitempty"`
}

// SnapshotResponse carries a snapshot payload and its content hash.
type SnapshotResponse struct {
	Hash     string `json:"hash"`
	Snapshot []byte `json:"snapshot"`
}
