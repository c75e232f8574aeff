// Package services wraps the ledger's provided interfaces (state views and
// publish_event) for the HTTP layer. It holds no business logic of its own.
package services

import (
	"context"
	"fmt"

	"ledgermesh/core"
	"ledgermesh/internal/publish"
)

// LedgerService exposes read-only state views and the publish entry point
// to HTTP controllers.
type LedgerService struct {
	state    *core.State
	pipeline *publish.Pipeline
}

// NewLedgerService binds a service to the node's reducer state and publish
// pipeline.
func NewLedgerService(state *core.State, pipeline *publish.Pipeline) *LedgerService {
	return &LedgerService{state: state, pipeline: pipeline}
}

// Balance returns the wallet balance for addr as a decimal string.
func (s *LedgerService) Balance(addr string) string {
	return s.state.Balance(addr).String()
}

func (s *LedgerService) Escrow(id string) (core.Escrow, bool) { return s.state.Escrow(id) }

func (s *LedgerService) Contract(id string) (core.Contract, bool) { return s.state.Contract(id) }

func (s *LedgerService) Listing(id string) (core.Listing, bool) { return s.state.Listing(id) }

func (s *LedgerService) ListingsBySeller(seller string) []string {
	return s.state.ListingsBySeller(seller)
}

func (s *LedgerService) Order(id string) (core.Order, bool) { return s.state.Order(id) }

func (s *LedgerService) Bid(id string) (core.Bid, bool) { return s.state.Bid(id) }

func (s *LedgerService) Lease(id string) (core.CapabilityLease, bool) { return s.state.Lease(id) }

func (s *LedgerService) Reputation(subject string) (core.Reputation, bool) {
	return s.state.Reputation(subject)
}

func (s *LedgerService) Proposal(id string) (core.DAOProposal, bool) { return s.state.Proposal(id) }

// PublishSigned submits an already-signed envelope through the publish
// pipeline. The HTTP layer never receives private keys, so signing happens
// client-side before the event reaches here.
func (s *LedgerService) PublishSigned(ctx context.Context, env *core.Envelope) (string, error) {
	if env.Sig == "" {
		return "", fmt.Errorf("%w: the API only accepts pre-signed envelopes", core.ErrEventSignatureInvalid)
	}
	return s.pipeline.Publish(ctx, env, nil)
}
