// Package publish implements the entry point for locally-produced events:
// validate, sign, apply against current state, persist, and broadcast.
package publish

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"

	"ledgermesh/core"
	"ledgermesh/internal/gossip"
)

// Broadcaster publishes already-encoded gossip envelopes to the events
// topic. internal/gossip.Node's pubsub router satisfies this through a thin
// adapter built by NewTopicBroadcaster.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// TopicBroadcaster publishes to a single joined pubsub topic, signing the
// outer P2P envelope with the node's transport identity.
type TopicBroadcaster struct {
	topic   *pubsub.Topic
	sender  string
	signKey ed25519.PrivateKey
}

// NewTopicBroadcaster joins the events topic on node and returns a
// Broadcaster bound to it.
func NewTopicBroadcaster(node *gossip.Node, signKey ed25519.PrivateKey) (*TopicBroadcaster, error) {
	t, err := node.PS.Join(gossip.TopicEvents)
	if err != nil {
		return nil, fmt.Errorf("publish: join events topic: %w", err)
	}
	return &TopicBroadcaster{topic: t, sender: node.Host.ID().String(), signKey: signKey}, nil
}

func (b *TopicBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	env, err := gossip.NewEnvelope(gossip.TopicEvents, b.sender, 0, gossip.ContentTypeEvent, payload, b.signKey)
	if err != nil {
		return err
	}
	wire, err := env.Encode()
	if err != nil {
		return err
	}
	return b.topic.Publish(ctx, wire)
}

// Pipeline is the single local writer: every locally-produced envelope
// passes through Publish, which serializes reducer application and Event
// Store appends the same way sync ingest does, satisfying the
// single-writer-for-the-state-path rule.
type Pipeline struct {
	mu          sync.Mutex
	es          *core.EventStore
	state       *core.State
	broadcaster Broadcaster
	log         *logrus.Entry
}

// New constructs a Publish Pipeline over the given Event Store and reducer
// state. broadcaster may be nil, in which case Publish persists and reduces
// the event but skips the gossip step — useful for single-node operation
// and tests.
func New(es *core.EventStore, state *core.State, broadcaster Broadcaster, log *logrus.Entry) *Pipeline {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{es: es, state: state, broadcaster: broadcaster, log: log.WithField("component", "publish")}
}

// Publish runs the five-step pipeline from the client-facing publish_event
// entry point: validate required fields, sign if unsigned, recompute the
// hash, apply the reducer and append to the Event Store transactionally,
// then broadcast. It returns the envelope's content hash.
//
// priv is the caller-identified private key used to sign env if it arrives
// unsigned (Sig == ""); pass nil for an envelope that is already finalized.
// Submitting the same hash twice is an idempotent no-op; two envelopes from
// the same issuer only collide if they also share a nonce.
//
// Step 4 runs under the pipeline's lock so that two concurrent local
// Publish calls never race on resourcePrev or nonce checks; steps 1-3 and
// the duplicate-hash check run before the lock is taken, and step 5 runs
// after it is released since broadcast failure does not unwind the commit.
func (p *Pipeline) Publish(ctx context.Context, env *core.Envelope, priv ed25519.PrivateKey) (string, error) {
	if env.Type == "" || env.Issuer == "" || env.Pub == "" {
		return "", fmt.Errorf("%w: envelope missing required fields", core.ErrPeerMessageInvalid)
	}

	if env.Sig == "" {
		if priv == nil {
			return "", fmt.Errorf("%w: envelope is unsigned and no signing key was supplied", core.ErrEventSignatureInvalid)
		}
		if err := env.Finalize(priv); err != nil {
			return "", err
		}
	}

	if existing, err := p.es.GetByHash(env.Hash); err == nil && existing != nil {
		return env.Hash, nil
	}

	p.mu.Lock()
	heads, err := core.Apply(p.state, env)
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	if err := p.es.Append(env, heads); err != nil {
		p.mu.Unlock()
		return "", fmt.Errorf("publish: event store append: %w", err)
	}
	p.mu.Unlock()

	if p.broadcaster != nil {
		payload, err := json.Marshal(env)
		if err != nil {
			p.log.WithError(err).Error("failed to encode event for broadcast")
			return env.Hash, nil
		}
		if err := p.broadcaster.Broadcast(ctx, payload); err != nil {
			p.log.WithError(err).Warn("best-effort broadcast failed after commit")
		}
	}
	return env.Hash, nil
}
