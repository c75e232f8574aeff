package core

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	resourceListing = "listing"
	resourceOrder   = "order"
	resourceBid     = "bid"
	resourceLease   = "lease"
)

type listingPublishPayload struct {
	ID       string `json:"id"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type listingIDPayload struct {
	ID string `json:"id"`
}

type orderCreatePayload struct {
	ID        string `json:"id"`
	ListingID string `json:"listingId"`
	Amount    string `json:"amount"`
}

type orderTransitionPayload struct {
	ID        string `json:"id"`
	NewStatus string `json:"newStatus"`
}

type bidSubmitPayload struct {
	ID        string `json:"id"`
	ListingID string `json:"listingId"`
	Amount    string `json:"amount"`
}

type bidIDPayload struct {
	ID string `json:"id"`
}

type leaseCreatePayload struct {
	ID         string `json:"id"`
	ListingID  string `json:"listingId"`
	UnitsLimit int64  `json:"unitsLimit"`
	ExpiresAt  int64  `json:"expiresAt"`
}

type leaseInvokePayload struct {
	ID    string `json:"id"`
	Units int64  `json:"units"`
}

type leaseIDPayload struct {
	ID string `json:"id"`
}

// applyMarket dispatches the marketplace sub-domains: listings, orders,
// bids and capability leases, each sharing the "market." type prefix but
// owning a distinct resource kind.
func applyMarket(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch {
	case hasTypePrefix(env.Type, "market.listing."):
		return applyListing(s, env)
	case hasTypePrefix(env.Type, "market.order."):
		return applyOrder(s, env)
	case hasTypePrefix(env.Type, "market.bid."):
		return applyBid(s, env)
	case hasTypePrefix(env.Type, "market.lease."):
		return applyLease(s, env)
	default:
		return nil, nil
	}
}

func hasTypePrefix(typ, prefix string) bool {
	return len(typ) >= len(prefix) && typ[:len(prefix)] == prefix
}

func applyListing(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "market.listing.publish":
		var p listingPublishPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if l, ok := s.Listings[p.ID]; ok {
			if env.Issuer != l.Seller {
				return nil, fmt.Errorf("%w: only the seller may republish a listing", ErrUnauthorizedIssuer)
			}
			if l.Status != ListingDraft && l.Status != ListingPaused {
				return nil, fmt.Errorf("%w: listing %s is %s, cannot publish", ErrInvalidStatusTransition, p.ID, l.Status)
			}
			if _, _, err := resourceHeadPrecondition(s, resourceListing, p.ID, env, false); err != nil {
				return nil, err
			}
			l.Status = ListingActive
			return []HeadUpdate{{Kind: resourceListing, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil
		}
		price, err := parseAmount(p.Price)
		if err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceListing, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Listings[p.ID] = &Listing{ID: p.ID, Seller: env.Issuer, Status: ListingActive, Price: price, Quantity: p.Quantity}
		zap.L().Sugar().Infof("listing published: %s by %s", p.ID, env.Issuer)
		return []HeadUpdate{{Kind: resourceListing, ID: p.ID, NewHead: env.Hash}}, nil

	case "market.listing.pause", "market.listing.resume", "market.listing.remove":
		var p listingIDPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		l, ok := s.Listings[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: listing %s", ErrResourceNotFound, p.ID)
		}
		if env.Issuer != l.Seller {
			return nil, fmt.Errorf("%w: only the seller may modify the listing", ErrUnauthorizedIssuer)
		}
		next := map[string]string{
			"market.listing.pause":  ListingPaused,
			"market.listing.resume": ListingActive,
			"market.listing.remove": ListingRemoved,
		}[env.Type]
		if l.Status != ListingActive && !(env.Type == "market.listing.resume" && l.Status == ListingPaused) {
			return nil, fmt.Errorf("%w: listing %s is %s, cannot %s", ErrInvalidStatusTransition, p.ID, l.Status, env.Type)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceListing, p.ID, env, false); err != nil {
			return nil, err
		}
		l.Status = next
		return []HeadUpdate{{Kind: resourceListing, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}

func applyOrder(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "market.order.create":
		var p orderCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		l, ok := s.Listings[p.ListingID]
		if !ok {
			return nil, fmt.Errorf("%w: listing %s", ErrResourceNotFound, p.ListingID)
		}
		if l.Status != ListingActive {
			return nil, fmt.Errorf("%w: listing %s is not active", ErrInvalidStatusTransition, p.ListingID)
		}
		if _, ok := s.Orders[p.ID]; ok {
			return nil, fmt.Errorf("%w: order %s already exists", ErrResourcePrevConflict, p.ID)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceOrder, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Orders[p.ID] = &Order{ID: p.ID, ListingID: p.ListingID, Buyer: env.Issuer, Seller: l.Seller, Status: OrderDraft, Amount: amount}
		return []HeadUpdate{{Kind: resourceOrder, ID: p.ID, NewHead: env.Hash}}, nil

	case "market.order.transition":
		var p orderTransitionPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		o, ok := s.Orders[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: order %s", ErrResourceNotFound, p.ID)
		}
		role, err := authorizedOrderRole(o.Status, p.NewStatus)
		if err != nil {
			return nil, err
		}
		if role == "buyer" && env.Issuer != o.Buyer {
			return nil, fmt.Errorf("%w: only the buyer may move order %s to %s", ErrUnauthorizedIssuer, p.ID, p.NewStatus)
		}
		if role == "seller" && env.Issuer != o.Seller {
			return nil, fmt.Errorf("%w: only the seller may move order %s to %s", ErrUnauthorizedIssuer, p.ID, p.NewStatus)
		}
		if role == "either" && env.Issuer != o.Buyer && env.Issuer != o.Seller {
			return nil, fmt.Errorf("%w: only a party to order %s may move it to %s", ErrUnauthorizedIssuer, p.ID, p.NewStatus)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceOrder, p.ID, env, false); err != nil {
			return nil, err
		}
		if p.NewStatus == OrderDisputed {
			o.DisputeID = p.ID + ":dispute"
		}
		o.Status = p.NewStatus
		return []HeadUpdate{{Kind: resourceOrder, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}

// orderEdgeRoles names which party may initiate each permitted order
// transition edge.
var orderEdgeRoles = map[string]string{
	OrderDraft + ">" + OrderPending:          "buyer",
	OrderDraft + ">" + OrderCancelled:        "buyer",
	OrderPending + ">" + OrderAccepted:       "seller",
	OrderPending + ">" + OrderCancelled:      "buyer",
	OrderAccepted + ">" + OrderPaymentPending: "buyer",
	OrderAccepted + ">" + OrderCancelled:      "buyer",
	OrderPaymentPending + ">" + OrderPaid:      "buyer",
	OrderPaymentPending + ">" + OrderCancelled: "buyer",
	OrderPaid + ">" + OrderInProgress:         "seller",
	OrderPaid + ">" + OrderDisputed:           "either",
	OrderInProgress + ">" + OrderDelivered:    "seller",
	OrderInProgress + ">" + OrderDisputed:     "either",
	OrderDelivered + ">" + OrderCompleted:     "buyer",
	OrderDelivered + ">" + OrderDisputed:      "either",
	OrderDisputed + ">" + OrderRefunded:       "either",
	OrderDisputed + ">" + OrderInProgress:     "seller",
}

func authorizedOrderRole(cur, next string) (string, error) {
	allowed := false
	for _, e := range orderTransitions[cur] {
		if e == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("%w: order cannot move from %s to %s", ErrInvalidStatusTransition, cur, next)
	}
	return orderEdgeRoles[cur+">"+next], nil
}

func applyBid(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "market.bid.submit":
		var p bidSubmitPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if _, ok := s.Listings[p.ListingID]; !ok {
			return nil, fmt.Errorf("%w: listing %s", ErrResourceNotFound, p.ListingID)
		}
		if _, ok := s.Bids[p.ID]; ok {
			return nil, fmt.Errorf("%w: bid %s already exists", ErrResourcePrevConflict, p.ID)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceBid, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Bids[p.ID] = &Bid{ID: p.ID, ListingID: p.ListingID, Bidder: env.Issuer, Status: BidSubmitted, Amount: amount}
		return []HeadUpdate{{Kind: resourceBid, ID: p.ID, NewHead: env.Hash}}, nil

	case "market.bid.shortlist", "market.bid.accept", "market.bid.reject":
		var p bidIDPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		b, ok := s.Bids[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: bid %s", ErrResourceNotFound, p.ID)
		}
		l, ok := s.Listings[b.ListingID]
		if !ok {
			return nil, fmt.Errorf("%w: listing %s", ErrResourceNotFound, b.ListingID)
		}
		if env.Issuer != l.Seller {
			return nil, fmt.Errorf("%w: only the listing's seller may act on a bid", ErrUnauthorizedIssuer)
		}
		if b.Status != BidSubmitted && !(env.Type == "market.bid.accept" && b.Status == BidShortlisted) {
			return nil, fmt.Errorf("%w: bid %s is %s", ErrBidInvalidState, p.ID, b.Status)
		}
		if env.Type == "market.bid.accept" {
			for id, other := range s.Bids {
				if id != p.ID && other.ListingID == b.ListingID && other.Status == BidAccepted {
					return nil, fmt.Errorf("%w: listing %s already has an accepted bid", ErrBidInvalidState, b.ListingID)
				}
			}
			zap.L().Sugar().Infof("bid accepted: %s on listing %s", p.ID, b.ListingID)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceBid, p.ID, env, false); err != nil {
			return nil, err
		}
		b.Status = map[string]string{
			"market.bid.shortlist": BidShortlisted,
			"market.bid.accept":    BidAccepted,
			"market.bid.reject":    BidRejected,
		}[env.Type]
		return []HeadUpdate{{Kind: resourceBid, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "market.bid.withdraw":
		var p bidIDPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		b, ok := s.Bids[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: bid %s", ErrResourceNotFound, p.ID)
		}
		if env.Issuer != b.Bidder {
			return nil, fmt.Errorf("%w: only the bidder may withdraw a bid", ErrUnauthorizedIssuer)
		}
		if b.Status == BidAccepted || b.Status == BidRejected || b.Status == BidWithdrawn {
			return nil, fmt.Errorf("%w: bid %s is %s", ErrBidInvalidState, p.ID, b.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceBid, p.ID, env, false); err != nil {
			return nil, err
		}
		b.Status = BidWithdrawn
		return []HeadUpdate{{Kind: resourceBid, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}

func applyLease(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "market.lease.create":
		var p leaseCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		l, ok := s.Listings[p.ListingID]
		if !ok {
			return nil, fmt.Errorf("%w: listing %s", ErrResourceNotFound, p.ListingID)
		}
		if l.Status != ListingActive {
			return nil, fmt.Errorf("%w: listing %s is not active", ErrInvalidStatusTransition, p.ListingID)
		}
		if _, ok := s.Leases[p.ID]; ok {
			return nil, fmt.Errorf("%w: lease %s already exists", ErrResourcePrevConflict, p.ID)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceLease, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Leases[p.ID] = &CapabilityLease{
			ID: p.ID, ListingID: p.ListingID, Lessor: l.Seller, Lessee: env.Issuer,
			Status: LeaseActive, UnitsLimit: p.UnitsLimit, ExpiresAt: p.ExpiresAt,
		}
		return []HeadUpdate{{Kind: resourceLease, ID: p.ID, NewHead: env.Hash}}, nil

	case "market.lease.invoke":
		var p leaseInvokePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		lease, ok := s.Leases[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: lease %s", ErrResourceNotFound, p.ID)
		}
		if env.Issuer != lease.Lessee {
			return nil, fmt.Errorf("%w: only the lessee may invoke the lease", ErrUnauthorizedIssuer)
		}
		if lease.ExpiresAt != 0 && env.TS >= lease.ExpiresAt {
			return nil, fmt.Errorf("%w: lease %s expired at %d", ErrLeaseExpired, p.ID, lease.ExpiresAt)
		}
		if lease.Status != LeaseActive {
			return nil, fmt.Errorf("%w: lease %s is %s", ErrLeaseExpired, p.ID, lease.Status)
		}
		if lease.UnitsLimit > 0 && lease.UnitsUsed+p.Units > lease.UnitsLimit {
			return nil, fmt.Errorf("%w: lease %s would exceed its unit limit", ErrLeaseExpired, p.ID)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceLease, p.ID, env, false); err != nil {
			return nil, err
		}
		lease.UnitsUsed += p.Units
		if lease.UnitsLimit > 0 && lease.UnitsUsed >= lease.UnitsLimit {
			lease.Status = LeaseExhausted
			zap.L().Sugar().Infof("lease exhausted: %s after %d units", p.ID, lease.UnitsUsed)
		}
		return []HeadUpdate{{Kind: resourceLease, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "market.lease.pause", "market.lease.resume":
		var p leaseIDPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		lease, ok := s.Leases[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: lease %s", ErrResourceNotFound, p.ID)
		}
		if env.Issuer != lease.Lessor && env.Issuer != lease.Lessee {
			return nil, fmt.Errorf("%w: only a party to the lease may pause or resume it", ErrUnauthorizedIssuer)
		}
		if env.Type == "market.lease.pause" && lease.Status != LeaseActive {
			return nil, fmt.Errorf("%w: lease %s is %s", ErrInvalidStatusTransition, p.ID, lease.Status)
		}
		if env.Type == "market.lease.resume" && lease.Status != LeasePaused {
			return nil, fmt.Errorf("%w: lease %s is %s", ErrInvalidStatusTransition, p.ID, lease.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceLease, p.ID, env, false); err != nil {
			return nil, err
		}
		if env.Type == "market.lease.pause" {
			lease.Status = LeasePaused
		} else {
			lease.Status = LeaseActive
		}
		return []HeadUpdate{{Kind: resourceLease, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "market.lease.cancel", "market.lease.terminate":
		var p leaseIDPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		lease, ok := s.Leases[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: lease %s", ErrResourceNotFound, p.ID)
		}
		isTerminate := env.Type == "market.lease.terminate"
		if isTerminate && env.Issuer != lease.Lessor {
			return nil, fmt.Errorf("%w: only the lessor may terminate the lease", ErrUnauthorizedIssuer)
		}
		if !isTerminate && env.Issuer != lease.Lessee {
			return nil, fmt.Errorf("%w: only the lessee may cancel the lease", ErrUnauthorizedIssuer)
		}
		if lease.Status == LeaseCancelled || lease.Status == LeaseTerminated || lease.Status == LeaseExpired {
			return nil, fmt.Errorf("%w: lease %s is %s", ErrInvalidStatusTransition, p.ID, lease.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceLease, p.ID, env, false); err != nil {
			return nil, err
		}
		if isTerminate {
			lease.Status = LeaseTerminated
		} else {
			lease.Status = LeaseCancelled
		}
		return []HeadUpdate{{Kind: resourceLease, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}
