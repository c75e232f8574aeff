package core

import (
	"fmt"
	"math/big"

	"ledgermesh/pkg/crypto"
)

const resourceEscrow = "escrow"

type escrowCreatePayload struct {
	ID           string   `json:"id"`
	Depositor    string   `json:"depositor"`
	Beneficiary  string   `json:"beneficiary"`
	Amount       string   `json:"amount"`
	ReleaseRules []string `json:"releaseRules"`
	ExpiresAt    int64    `json:"expiresAt"`
}

type escrowFundPayload struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type escrowReleasePayload struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	RuleID string `json:"ruleId"`
}

type escrowRefundPayload struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// applyEscrow handles escrow.create, escrow.fund, escrow.release and
// escrow.refund, enforcing the pending -> funded -> (releasing* | refunded
// | released | disputed) lifecycle.
func applyEscrow(s *State, env *Envelope) ([]HeadUpdate, error) {
	addr, err := crypto.AddressFromDID(env.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDIDInvalid, err)
	}
	issuer := addr.String()
	switch env.Type {
	case "escrow.create":
		var p escrowCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if issuer != p.Depositor {
			return nil, fmt.Errorf("%w: only the depositor may create the escrow", ErrUnauthorizedIssuer)
		}
		if _, ok := s.Escrows[p.ID]; ok {
			return nil, fmt.Errorf("%w: escrow %s already exists", ErrResourcePrevConflict, p.ID)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceEscrow, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Escrows[p.ID] = &Escrow{
			ID:           p.ID,
			Depositor:    p.Depositor,
			Beneficiary:  p.Beneficiary,
			Amount:       amount,
			Released:     big.NewInt(0),
			Refunded:     big.NewInt(0),
			ReleaseRules: p.ReleaseRules,
			ExpiresAt:    p.ExpiresAt,
			Status:       EscrowPending,
		}
		return []HeadUpdate{{Kind: resourceEscrow, ID: p.ID, NewHead: env.Hash}}, nil

	case "escrow.fund":
		var p escrowFundPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		e, err := requireEscrow(s, p.ID)
		if err != nil {
			return nil, err
		}
		if issuer != e.Depositor {
			return nil, fmt.Errorf("%w: only the depositor may fund the escrow", ErrUnauthorizedIssuer)
		}
		if e.Status != EscrowPending {
			return nil, fmt.Errorf("%w: escrow %s is %s, expected pending", ErrInvalidStatusTransition, p.ID, e.Status)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Cmp(e.Amount) != 0 {
			return nil, fmt.Errorf("%w: funding amount must equal the declared escrow amount", ErrPeerMessageInvalid)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceEscrow, p.ID, env, false); err != nil {
			return nil, err
		}
		if s.balance(e.Depositor).Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: depositor %s cannot fund %s", ErrInsufficientBalance, e.Depositor, p.Amount)
		}
		s.Balances[e.Depositor] = new(big.Int).Sub(s.balance(e.Depositor), amount)
		e.Status = EscrowFunded
		return []HeadUpdate{{Kind: resourceEscrow, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "escrow.release":
		var p escrowReleasePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		e, err := requireEscrow(s, p.ID)
		if err != nil {
			return nil, err
		}
		if issuer != e.Depositor {
			return nil, fmt.Errorf("%w: only the depositor may authorize a release", ErrUnauthorizedIssuer)
		}
		if e.Status != EscrowFunded && e.Status != EscrowReleasing {
			return nil, fmt.Errorf("%w: escrow %s is %s, expected funded or releasing", ErrInvalidStatusTransition, p.ID, e.Status)
		}
		if !containsRule(e.ReleaseRules, p.RuleID) {
			return nil, fmt.Errorf("%w: rule %s is not registered on escrow %s", ErrPeerMessageInvalid, p.RuleID, p.ID)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Cmp(e.Remaining()) > 0 {
			return nil, fmt.Errorf("%w: release %s exceeds remaining balance", ErrInsufficientBalance, p.Amount)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceEscrow, p.ID, env, false); err != nil {
			return nil, err
		}

		e.Released = new(big.Int).Add(e.Released, amount)
		s.Balances[e.Beneficiary] = new(big.Int).Add(s.balance(e.Beneficiary), amount)
		if e.Remaining().Sign() == 0 {
			e.Status = EscrowReleased
		} else {
			e.Status = EscrowReleasing
		}
		return []HeadUpdate{{Kind: resourceEscrow, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "escrow.refund":
		var p escrowRefundPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		e, err := requireEscrow(s, p.ID)
		if err != nil {
			return nil, err
		}
		if issuer != e.Depositor && issuer != e.Beneficiary {
			return nil, fmt.Errorf("%w: only a party to the escrow may request a refund", ErrUnauthorizedIssuer)
		}
		if e.Status == EscrowReleased || e.Status == EscrowRefunded {
			return nil, fmt.Errorf("%w: escrow %s is already settled", ErrEscrowSettled, p.ID)
		}
		if e.Status == EscrowPending {
			return nil, fmt.Errorf("%w: escrow %s has not been funded", ErrInvalidStatusTransition, p.ID)
		}
		if p.Reason == "" {
			return nil, fmt.Errorf("%w: refund requires a reason", ErrPeerMessageInvalid)
		}
		if p.Reason == "expired" && env.TS < e.ExpiresAt {
			return nil, fmt.Errorf("%w: escrow %s has not reached its expiry", ErrEscrowNotExpired, p.ID)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Cmp(e.Remaining()) > 0 {
			return nil, fmt.Errorf("%w: refund %s exceeds remaining balance", ErrInsufficientBalance, p.Amount)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceEscrow, p.ID, env, false); err != nil {
			return nil, err
		}

		e.Refunded = new(big.Int).Add(e.Refunded, amount)
		s.Balances[e.Depositor] = new(big.Int).Add(s.balance(e.Depositor), amount)
		if e.Remaining().Sign() == 0 {
			e.Status = EscrowRefunded
		}
		return []HeadUpdate{{Kind: resourceEscrow, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}

func requireEscrow(s *State, id string) (*Escrow, error) {
	e, ok := s.Escrows[id]
	if !ok {
		return nil, fmt.Errorf("%w: escrow %s", ErrResourceNotFound, id)
	}
	return e, nil
}

func containsRule(rules []string, id string) bool {
	for _, r := range rules {
		if r == id {
			return true
		}
	}
	return false
}
