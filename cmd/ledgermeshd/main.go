package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ledgermesh/apiserver"
	"ledgermesh/core"
	"ledgermesh/internal/gossip"
	"ledgermesh/internal/publish"
	"ledgermesh/pkg/config"
	"ledgermesh/pkg/crypto"
	"ledgermesh/pkg/store"
)

func main() {
	rootCmd := &cobra.Command{Use: "ledgermeshd"}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(newIDCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "generate an Ed25519 identity and print its DID",
		Run: func(cmd *cobra.Command, args []string) {
			pub, priv, err := crypto.GenerateKey()
			if err != nil {
				logrus.WithError(err).Fatal("generate key")
			}
			did, err := crypto.DIDFromPublicKey(pub)
			if err != nil {
				logrus.WithError(err).Fatal("derive did")
			}
			fmt.Printf("did: %s\n", did)
			fmt.Printf("address: %s\n", crypto.AddressFromPublicKey(pub).String())
			fmt.Printf("private_key: %s\n", hex.EncodeToString(priv))
		},
	}
}

// newIDCmd prints a fresh random identifier for a resource the caller is
// about to create (a listing, order, bid, or lease). Resource ids are
// assigned by the client, not the ledger, since the id itself is part of
// what gets signed — the node never allocates them.
func newIDCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "new-id",
		Short: "generate a resource id for a listing, order, bid, or lease event",
		Run: func(cmd *cobra.Command, args []string) {
			id := uuid.New().String()
			if prefix != "" {
				id = prefix + "-" + id
			}
			fmt.Println(id)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "optional prefix, e.g. listing, order, bid, lease")
	return cmd
}

func serveCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run a ledgermesh node: gossip, event store, reducers, and the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay config to merge (e.g. dev, prod)")
	return cmd
}

func runServe(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.WithField("node", "ledgermeshd")

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("start structured logger: %w", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	kv, err := store.OpenLevelStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer kv.Close()

	es := core.NewEventStore(kv)
	state := core.NewState()
	for _, did := range cfg.Ledger.MintAuthorities {
		state.GrantMintAuthority(did)
	}
	if err := replayLog(es, state, log); err != nil {
		return fmt.Errorf("replay event log: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node, err := gossip.NewNode(ctx, cfg.Network.ListenAddr, log)
	if err != nil {
		return fmt.Errorf("start gossip node: %w", err)
	}
	defer node.Close()

	for _, addr := range cfg.Network.BootstrapPeers {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			log.WithError(err).WithField("peer", addr).Warn("invalid bootstrap peer address")
			continue
		}
		if err := node.Connect(ctx, *pi); err != nil {
			log.WithError(err).WithField("peer", addr).Warn("failed to connect to bootstrap peer")
		}
	}

	transportPriv, ok := node.SigningKey()
	if !ok {
		return fmt.Errorf("node identity key is not Ed25519")
	}

	broadcaster, err := publish.NewTopicBroadcaster(node, transportPriv)
	if err != nil {
		return fmt.Errorf("create broadcaster: %w", err)
	}
	pipeline := publish.New(es, state, broadcaster, log)

	limits := gossip.Limits{
		MaxEnvelopeBytes: cfg.Sync.MaxEnvelopeBytes,
		MaxRangeLimit:    cfg.Sync.MaxRangeLimit,
		MaxRangeBytes:    cfg.Sync.MaxRangeBytes,
		MaxSnapshotBytes: cfg.Sync.MaxSnapshotBytes,
	}
	peerScore := gossip.NewPeerReputation()
	engine := gossip.NewEngine(node, es, state, node.PeerPublicKey, peerScore, limits, transportPriv, log)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start sync engine: %w", err)
	}
	defer engine.Stop()

	router := apiserver.NewRouter(state, pipeline)
	srv := &http.Server{Addr: cfg.API.ListenAddr, Handler: router}
	go func() {
		log.WithField("addr", cfg.API.ListenAddr).Info("api server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("api server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	_ = srv.Shutdown(context.Background())
	return nil
}

// replayLog rebuilds in-memory state by folding every persisted event back
// through the reducer, the cold-start path before any snapshot is taken.
func replayLog(es *core.EventStore, state *core.State, log *logrus.Entry) error {
	var cursor *uint64
	replayed := 0
	for {
		events, next, err := es.RangeIterate(cursor, 1000, 64<<20)
		if err != nil {
			return err
		}
		for _, env := range events {
			if _, err := core.Apply(state, env); err != nil {
				log.WithError(err).WithField("hash", env.Hash).Warn("skipping event that no longer reduces cleanly")
				continue
			}
		}
		replayed += len(events)
		if next == nil {
			break
		}
		cursor = next
	}
	log.WithField("count", replayed).Info("replayed event log")
	return nil
}
