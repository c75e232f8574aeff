package core

import (
	"math/big"
	"sort"
	"sync"
)

// State is the full set of in-memory projections derived by folding the
// event log. It is rebuilt from genesis (optionally fast-forwarded from a
// snapshot) on startup and mutated only under the writer lock during Apply.
type State struct {
	mu sync.RWMutex

	Balances        map[string]*big.Int
	FeePool         *big.Int
	MintAuthorities map[string]bool
	nonces          map[string]*nonceWindow

	// resourceHeads mirrors the Event Store's resource-chain head table so
	// reducers can evaluate the resourcePrev precondition without a
	// round-trip to storage. Keyed by "<kind>/<id>".
	resourceHeads map[string]string

	Identities  map[string]*Identity
	Escrows     map[string]*Escrow
	Contracts   map[string]*Contract
	Listings    map[string]*Listing
	Orders      map[string]*Order
	Bids        map[string]*Bid
	Leases      map[string]*CapabilityLease
	Submissions map[string]*Submission
	Disputes    map[string]*Dispute
	Reputations map[string]*Reputation
	Proposals   map[string]*DAOProposal
}

// NewState returns an empty projection set, the starting point for a
// genesis replay.
func NewState() *State {
	return &State{
		Balances:        make(map[string]*big.Int),
		FeePool:         big.NewInt(0),
		MintAuthorities: make(map[string]bool),
		nonces:          make(map[string]*nonceWindow),
		resourceHeads:   make(map[string]string),
		Identities:  make(map[string]*Identity),
		Escrows:     make(map[string]*Escrow),
		Contracts:   make(map[string]*Contract),
		Listings:    make(map[string]*Listing),
		Orders:      make(map[string]*Order),
		Bids:        make(map[string]*Bid),
		Leases:      make(map[string]*CapabilityLease),
		Submissions: make(map[string]*Submission),
		Disputes:    make(map[string]*Dispute),
		Reputations: make(map[string]*Reputation),
		Proposals:   make(map[string]*DAOProposal),
	}
}

// balance returns the current balance for an address, defaulting to zero,
// without allocating an entry in the map for reads.
func (s *State) balance(addr string) *big.Int {
	if b, ok := s.Balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

// GrantMintAuthority whitelists issuer for wallet.mint events. Intended to
// be called once at genesis from node configuration, not from the event
// log itself — minting authority is a deployment decision, not a
// self-service DAO action in this design.
func (s *State) GrantMintAuthority(issuer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MintAuthorities[issuer] = true
}

// ---- Read-only state views (§6 "provided interfaces") ----

// Balance returns the wallet balance for addr.
func (s *State) Balance(addr string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.balance(addr))
}

// Escrow returns a copy of the escrow record for id, if present.
func (s *State) Escrow(id string) (Escrow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.Escrows[id]
	if !ok {
		return Escrow{}, false
	}
	return *e, true
}

// Contract returns a copy of the contract record for id, if present.
func (s *State) Contract(id string) (Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.Contracts[id]
	if !ok {
		return Contract{}, false
	}
	return *c, true
}

// Listing returns a copy of the listing record for id, if present.
func (s *State) Listing(id string) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.Listings[id]
	if !ok {
		return Listing{}, false
	}
	return *l, true
}

// ListingsBySeller returns ids of listings owned by seller, sorted for
// deterministic presentation.
func (s *State) ListingsBySeller(seller string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, l := range s.Listings {
		if l.Seller == seller {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Order returns a copy of the order record for id, if present.
func (s *State) Order(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.Orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Bid returns a copy of the bid record for id, if present.
func (s *State) Bid(id string) (Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.Bids[id]
	if !ok {
		return Bid{}, false
	}
	return *b, true
}

// Lease returns a copy of the capability lease record for id, if present.
func (s *State) Lease(id string) (CapabilityLease, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.Leases[id]
	if !ok {
		return CapabilityLease{}, false
	}
	return *l, true
}

// Reputation returns a copy of the reputation record for subject, if
// present.
func (s *State) Reputation(subject string) (Reputation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.Reputations[subject]
	if !ok {
		return Reputation{}, false
	}
	return *r, true
}

// Proposal returns a copy of the DAO proposal for id, if present.
func (s *State) Proposal(id string) (DAOProposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.Proposals[id]
	if !ok {
		return DAOProposal{}, false
	}
	return *p, true
}
