package gossip

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/sirupsen/logrus"
)

// DiscoveryTag namespaces the mDNS service so ledgermesh nodes don't
// connect to unrelated libp2p hosts on the same LAN segment.
const DiscoveryTag = "ledgermesh-sync"

// Node wraps a libp2p host and its GossipSub router, the transport the sync
// engine runs its three topic subscriptions over.
type Node struct {
	Host host.Host
	PS   *pubsub.PubSub

	peerLock sync.RWMutex
	peers    map[peer.ID]struct{}

	log *logrus.Entry
}

// NewNode starts a libp2p host listening on listenAddr, joins a GossipSub
// mesh, and turns on mDNS discovery and NAT port mapping so nodes on a LAN
// or behind a home router find each other without manual bootstrap peers.
func NewNode(ctx context.Context, listenAddr string, log *logrus.Entry) (*Node, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr), libp2p.NATPortMap())
	if err != nil {
		return nil, fmt.Errorf("gossip: create libp2p host: %w", err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("gossip: create gossipsub: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	n := &Node{Host: h, PS: ps, peers: make(map[peer.ID]struct{}), log: log.WithField("component", "gossip")}

	if _, err := mdns.NewMdnsService(h, DiscoveryTag, n).Start(ctx); err != nil {
		n.log.WithError(err).Warn("mDNS discovery unavailable")
	}
	return n, nil
}

// HandlePeerFound implements mdns.Notifee: connect to peers discovered on
// the local network, skipping ourselves and peers we've already dialed.
func (n *Node) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.Host.ID() {
		return
	}
	n.peerLock.RLock()
	_, known := n.peers[info.ID]
	n.peerLock.RUnlock()
	if known {
		return
	}
	if err := n.Host.Connect(context.Background(), info); err != nil {
		n.log.WithError(err).WithField("peer", info.ID).Warn("failed to connect to discovered peer")
		return
	}
	n.peerLock.Lock()
	n.peers[info.ID] = struct{}{}
	n.peerLock.Unlock()
	n.log.WithField("peer", info.ID).Info("connected via mDNS")
}

// Connect dials a known multiaddr, used for explicit bootstrap peers
// supplied via configuration.
func (n *Node) Connect(ctx context.Context, pi peer.AddrInfo) error {
	if err := n.Host.Connect(ctx, pi); err != nil {
		return fmt.Errorf("gossip: connect to %s: %w", pi.ID, err)
	}
	n.peerLock.Lock()
	n.peers[pi.ID] = struct{}{}
	n.peerLock.Unlock()
	return nil
}

// Close shuts down the libp2p host.
func (n *Node) Close() error {
	return n.Host.Close()
}

// SigningKey returns the node's own libp2p identity key in raw Ed25519
// form. Gossip messages are signed with this key so that a receiving
// peer's PeerPublicKey(ourPeerID) — recovered from the same handshake that
// authenticated the libp2p connection — verifies them without a separate
// application-level key exchange.
func (n *Node) SigningKey() (ed25519.PrivateKey, bool) {
	priv := n.Host.Peerstore().PrivKey(n.Host.ID())
	if priv == nil || priv.Type() != p2pcrypto.Ed25519 {
		return nil, false
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, false
	}
	return ed25519.PrivateKey(raw), true
}

// PeerPublicKey implements the get_peer_public_key consumed interface: it
// recovers the raw Ed25519 key libp2p already negotiated for peerIDStr
// during the transport handshake, so the sync engine never needs a
// separate key exchange to verify P2P envelope signatures.
func (n *Node) PeerPublicKey(peerIDStr string) (ed25519.PublicKey, bool) {
	pid, err := peer.Decode(peerIDStr)
	if err != nil {
		return nil, false
	}
	pub := n.Host.Peerstore().PubKey(pid)
	if pub == nil || pub.Type() != p2pcrypto.Ed25519 {
		return nil, false
	}
	raw, err := pub.Raw()
	if err != nil {
		return nil, false
	}
	return ed25519.PublicKey(raw), true
}
