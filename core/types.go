package core

import "math/big"

// Identity is the minimal projection of a DID: when it was first seen and
// which capability credentials it has registered. Capability registration
// appends to the list without otherwise changing identity state, per the
// data model.
type Identity struct {
	DID          string
	CreatedAt    int64
	UpdatedAt    int64
	Capabilities []string
}

// Escrow mirrors the lifecycle in §3: pending -> funded -> (releasing* |
// refunded | released | disputed).
type Escrow struct {
	ID           string
	Depositor    string
	Beneficiary  string
	Amount       *big.Int
	Released     *big.Int
	Refunded     *big.Int
	ReleaseRules []string
	ExpiresAt    int64
	Status       string
	Head         string
}

// Remaining returns the escrow's unsettled balance.
func (e *Escrow) Remaining() *big.Int {
	out := new(big.Int).Sub(e.Amount, e.Released)
	return out.Sub(out, e.Refunded)
}

// Escrow statuses.
const (
	EscrowPending   = "pending"
	EscrowFunded    = "funded"
	EscrowReleasing = "releasing"
	EscrowRefunded  = "refunded"
	EscrowReleased  = "released"
	EscrowDisputed  = "disputed"
)

// Milestone is one payment checkpoint within a service contract.
type Milestone struct {
	ID     string
	Status string
	Amount *big.Int
}

// Milestone statuses.
const (
	MilestonePending   = "pending"
	MilestoneSubmitted = "submitted"
	MilestoneApproved  = "approved"
	MilestoneRejected  = "rejected"
)

// Contract is a service contract between a client and a provider, with a
// milestone-based payment schedule.
type Contract struct {
	ID         string
	Client     string
	Provider   string
	Status     string
	Milestones map[string]*Milestone
	Head       string
}

// Contract statuses.
const (
	ContractDraft            = "draft"
	ContractNegotiating      = "negotiating"
	ContractPendingSignature = "pending_signature"
	ContractPendingFunding   = "pending_funding"
	ContractActive           = "active"
	ContractCompleted        = "completed"
	ContractDisputed         = "disputed"
	ContractResolved         = "resolved"
)

// contractTransitions lists the allowed contract status edges;
// reducer_contract.go checks contract.complete, contract.dispute and
// contract.resolve against it.
var contractTransitions = map[string][]string{
	ContractDraft:            {ContractNegotiating, ContractPendingSignature},
	ContractNegotiating:      {ContractPendingSignature},
	ContractPendingSignature: {ContractPendingFunding},
	ContractPendingFunding:   {ContractActive},
	ContractActive:           {ContractCompleted, ContractDisputed},
	ContractDisputed:         {ContractResolved},
	ContractResolved:         {ContractActive, ContractCompleted},
}

// Listing is a marketplace service or goods listing.
type Listing struct {
	ID       string
	Seller   string
	Status   string
	Price    *big.Int
	Quantity int64
	Head     string
}

// Listing statuses.
const (
	ListingDraft   = "draft"
	ListingActive  = "active"
	ListingPaused  = "paused"
	ListingSoldOut = "sold_out"
	ListingExpired = "expired"
	ListingRemoved = "removed"
)

// Order is a buyer's purchase of a listing, following the long linear path
// in §3 with cancellation/dispute off-ramps to refunded.
type Order struct {
	ID        string
	ListingID string
	Buyer     string
	Seller    string
	Status    string
	Amount    *big.Int
	DisputeID string
	Head      string
}

// Order statuses.
const (
	OrderDraft          = "draft"
	OrderPending        = "pending"
	OrderAccepted       = "accepted"
	OrderPaymentPending = "payment_pending"
	OrderPaid           = "paid"
	OrderInProgress     = "in_progress"
	OrderDelivered      = "delivered"
	OrderCompleted      = "completed"
	OrderCancelled      = "cancelled"
	OrderDisputed       = "disputed"
	OrderRefunded       = "refunded"
)

// orderTransitions is the DAG of permitted order status edges; any edge not
// listed here is rejected with INVALID_STATUS_TRANSITION. Terminal states
// have no outgoing edges except the implicit self (a no-op is not modeled).
var orderTransitions = map[string][]string{
	OrderDraft:          {OrderPending, OrderCancelled},
	OrderPending:        {OrderAccepted, OrderCancelled},
	OrderAccepted:       {OrderPaymentPending, OrderCancelled},
	OrderPaymentPending: {OrderPaid, OrderCancelled},
	OrderPaid:           {OrderInProgress, OrderDisputed},
	OrderInProgress:     {OrderDelivered, OrderDisputed},
	OrderDelivered:      {OrderCompleted, OrderDisputed},
	OrderDisputed:       {OrderRefunded, OrderInProgress},
}

// Bid is an offer against a task-style listing.
type Bid struct {
	ID        string
	ListingID string
	Bidder    string
	Status    string
	Amount    *big.Int
	Head      string
}

// Bid statuses.
const (
	BidSubmitted   = "submitted"
	BidShortlisted = "shortlisted"
	BidAccepted    = "accepted"
	BidRejected    = "rejected"
	BidWithdrawn   = "withdrawn"
)

// CapabilityLease grants a lessee bounded, metered use of a lessor's
// resource listing.
type CapabilityLease struct {
	ID         string
	ListingID  string
	Lessor     string
	Lessee     string
	Status     string
	UnitsUsed  int64
	UnitsLimit int64
	ExpiresAt  int64
	Head       string
}

// Capability lease statuses.
const (
	LeaseActive    = "active"
	LeasePaused    = "paused"
	LeaseExhausted = "exhausted"
	LeaseExpired   = "expired"
	LeaseCancelled = "cancelled"
	LeaseTerminated = "terminated"
)

// Submission is reviewable work product attached to a contract milestone or
// a capability lease deliverable.
type Submission struct {
	ID     string
	Status string
	Head   string
}

// Submission statuses.
const (
	SubmissionPendingReview = "pending_review"
	SubmissionApproved      = "approved"
	SubmissionRejected      = "rejected"
	SubmissionRevision      = "revision"
)

// Dispute cross-references an order or contract under active disagreement.
type Dispute struct {
	ID       string
	Subject  string
	Status   string
	Head     string
}

// Dispute statuses.
const (
	DisputeOpen      = "open"
	DisputeResponded = "responded"
	DisputeResolved  = "resolved"
)

// Reputation is the append-derived standing of a DID, adjusted by
// completed orders, disputes and DAO-slashable conduct.
type Reputation struct {
	Subject string
	Score   int64
	Events  int64
}

// DAOProposal follows the governance lifecycle in §3.
type DAOProposal struct {
	ID             string
	Proposer       string
	Status         string
	VotingStart    int64
	VotingEnd      int64
	TimelockUntil  int64
	VotesFor       *big.Int
	VotesAgainst   *big.Int
	Voters         map[string]bool
	Head           string
}

// DAO proposal statuses.
const (
	ProposalDiscussion = "discussion"
	ProposalVoting     = "voting"
	ProposalPassed     = "passed"
	ProposalQueued     = "queued"
	ProposalExecuted   = "executed"
	ProposalRejected   = "rejected"
	ProposalCancelled  = "cancelled"
)
