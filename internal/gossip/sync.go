package gossip

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"

	"ledgermesh/core"
	"ledgermesh/pkg/crypto"
)

// Limits bounds the sizes and counts the ingress and serving paths enforce,
// per §4.5 and the backpressure rules in §5.
type Limits struct {
	MaxEnvelopeBytes int
	MaxRangeLimit    int
	MaxRangeBytes    int
	MaxSnapshotBytes int
}

// DefaultLimits holds the same ceilings pkg/config fills in for unset sync
// settings. MaxEnvelopeBytes bounds the outer P2P envelope and is larger
// than core.MaxEventSize. The serve command builds its Limits from
// configuration and does not read DefaultLimits.
var DefaultLimits = Limits{
	MaxEnvelopeBytes: 256 * 1024,
	MaxRangeLimit:    500,
	MaxRangeBytes:    4 * 1024 * 1024,
	MaxSnapshotBytes: 32 * 1024 * 1024,
}

// ResolvePeerKey resolves a peer id to its Ed25519 public key, the abstract
// callback the spec hands to the sync engine.
type ResolvePeerKey func(peerID string) (ed25519.PublicKey, bool)

// PeerScore records PEER_MESSAGE_INVALID / PEER_SIGNATURE_INVALID outcomes
// against a peer, used for gossip reputation.
type PeerScore interface {
	Penalize(peerID string, reason string)
}

// Engine runs the three-topic ingress pipeline: events, requests,
// responses. A single Engine serializes writes to its EventStore, matching
// the single-writer requirement in §5.
type Engine struct {
	node    *Node
	es      *core.EventStore
	state   *core.State
	resolve ResolvePeerKey
	score   PeerScore
	limits  Limits
	selfID  string
	signKey ed25519.PrivateKey
	log     *logrus.Entry

	mu     sync.Mutex
	subs   []*pubsub.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs a sync engine bound to the given node, store and
// reducer state. signKey signs the engine's own outgoing range/snapshot
// responses; it is the node's transport identity, distinct from any
// account key used to sign ledger events.
func NewEngine(node *Node, es *core.EventStore, state *core.State, resolve ResolvePeerKey, score PeerScore, limits Limits, signKey ed25519.PrivateKey, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		node: node, es: es, state: state, resolve: resolve, score: score, limits: limits,
		selfID: node.Host.ID().String(), signKey: signKey, log: log.WithField("component", "sync"),
	}
}

// Start subscribes to all three topics and begins processing messages. Each
// topic runs its own goroutine; writes to the Event Store are serialized by
// core.EventStore's own lock, satisfying the single-writer-per-peer rule
// while allowing topics to be handled concurrently.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for _, topic := range []string{TopicEvents, TopicRequests, TopicResponses} {
		t, err := e.node.PS.Join(topic)
		if err != nil {
			cancel()
			return fmt.Errorf("gossip: join topic %s: %w", topic, err)
		}
		sub, err := t.Subscribe()
		if err != nil {
			cancel()
			return fmt.Errorf("gossip: subscribe topic %s: %w", topic, err)
		}
		e.mu.Lock()
		e.subs = append(e.subs, sub)
		e.mu.Unlock()
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.loop(ctx, topic, t, sub)
		}()
	}
	return nil
}

// Stop unsubscribes every topic and returns once in-flight handlers have
// observed cancellation.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		sub.Cancel()
	}
	e.subs = nil
	e.wg.Wait()
}

func (e *Engine) loop(ctx context.Context, topic string, t *pubsub.Topic, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		e.handle(ctx, topic, t, msg.Data)
	}
}

// handle runs the full ingress pipeline from §4.5 for a single raw pubsub
// message.
func (e *Engine) handle(ctx context.Context, topic string, t *pubsub.Topic, raw []byte) {
	if len(raw) > e.limits.MaxEnvelopeBytes {
		return
	}
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return
	}
	if env.Topic != topic {
		return
	}
	if env.Sender == e.selfID {
		return
	}
	if e.resolve != nil {
		pub, ok := e.resolve(env.Sender)
		if !ok || !env.Verify(pub) {
			if e.score != nil {
				e.score.Penalize(env.Sender, "PEER_SIGNATURE_INVALID")
			}
			return
		}
	}

	switch topic {
	case TopicEvents:
		e.handleEvent(env)
	case TopicRequests:
		e.handleRequest(ctx, t, env)
	case TopicResponses:
		e.handleResponse(env)
	}
}

func (e *Engine) handleEvent(env *Envelope) {
	if env.ContentType != ContentTypeEvent {
		return
	}
	e.ingestEvent(env.Payload, env.Sender)
}

// ingestEvent decodes and applies a single canonical-JSON event envelope.
// Failures reject only this event; the caller's batch, if any, continues.
func (e *Engine) ingestEvent(raw []byte, sender string) {
	var ev core.Envelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		if e.score != nil {
			e.score.Penalize(sender, "PEER_MESSAGE_INVALID")
		}
		return
	}
	heads, err := core.Apply(e.state, &ev)
	if err != nil {
		e.log.WithError(err).WithField("peer", sender).Debug("rejected event on ingest")
		if e.score != nil {
			e.score.Penalize(sender, "PEER_MESSAGE_INVALID")
		}
		return
	}
	if err := e.es.Append(&ev, heads); err != nil {
		e.log.WithError(err).Error("event store append failed during sync ingest")
	}
}

func (e *Engine) handleRequest(ctx context.Context, t *pubsub.Topic, env *Envelope) {
	switch env.ContentType {
	case ContentTypeRangeRequest:
		var req RangeRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return
		}
		limit := req.Limit
		if limit > e.limits.MaxRangeLimit {
			limit = e.limits.MaxRangeLimit
		}
		events, next, err := e.es.RangeIterate(req.From, limit, e.limits.MaxRangeBytes)
		if err != nil {
			e.log.WithError(err).Error("range iterate failed serving request")
			return
		}
		raw := make([]json.RawMessage, 0, len(events))
		for _, ev := range events {
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			raw = append(raw, b)
		}
		resp, err := json.Marshal(RangeResponse{Events: raw, NextCursor: next})
		if err != nil {
			return
		}
		e.publish(ctx, t, ContentTypeRangeResponse, resp)

	case ContentTypeSnapshotRequest:
		snap, hash, ok, err := e.es.LoadLatestSnapshot()
		if err != nil || !ok || len(snap) > e.limits.MaxSnapshotBytes {
			return
		}
		resp, err := json.Marshal(SnapshotResponse{Hash: hash, Snapshot: snap})
		if err != nil {
			return
		}
		e.publish(ctx, t, ContentTypeSnapshotResponse, resp)
	}
}

func (e *Engine) handleResponse(env *Envelope) {
	switch env.ContentType {
	case ContentTypeRangeResponse:
		var resp RangeResponse
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			return
		}
		for _, raw := range resp.Events {
			e.ingestEvent(raw, env.Sender)
		}

	case ContentTypeSnapshotResponse:
		var resp SnapshotResponse
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			return
		}
		if crypto.SHA256Hex(resp.Snapshot) != resp.Hash {
			if e.score != nil {
				e.score.Penalize(env.Sender, "PEER_MESSAGE_INVALID")
			}
			return
		}
		if err := e.es.SaveSnapshot(resp.Snapshot, resp.Hash); err != nil {
			e.log.WithError(err).Error("failed to persist received snapshot")
			return
		}
		if err := e.es.MarkLatestSnapshot(resp.Hash); err != nil {
			e.log.WithError(err).Error("failed to mark received snapshot as latest")
		}
	}
}

func (e *Engine) publish(ctx context.Context, t *pubsub.Topic, contentType string, payload []byte) {
	env, err := NewEnvelope(t.String(), e.selfID, uint64(time.Now().Unix()), contentType, payload, e.signKey)
	if err != nil {
		return
	}
	b, err := env.Encode()
	if err != nil {
		return
	}
	if err := t.Publish(ctx, b); err != nil {
		e.log.WithError(err).WithField("topic", t.String()).Debug("publish failed")
	}
}
