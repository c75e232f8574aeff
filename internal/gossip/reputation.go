package gossip

import "sync"

// PeerReputation tracks a simple decaying-free penalty count per peer for
// the sync engine's own transport-layer trust, distinct from the
// marketplace reputation resource in core (which is keyed by DID, not by
// libp2p peer id, and only moves via signed reputation.record events).
type PeerReputation struct {
	mu        sync.Mutex
	penalties map[string]int
}

// NewPeerReputation returns an empty tracker.
func NewPeerReputation() *PeerReputation {
	return &PeerReputation{penalties: make(map[string]int)}
}

// Penalize implements gossip.PeerScore: it increments the penalty count for
// peerID. reason is logged by the caller, not interpreted here.
func (r *PeerReputation) Penalize(peerID string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.penalties[peerID]++
}

// Penalties reports the current penalty count for peerID.
func (r *PeerReputation) Penalties(peerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.penalties[peerID]
}
