package core

import (
	"fmt"
	"math/big"
)

const resourceContract = "contract"

type contractCreatePayload struct {
	ID         string              `json:"id"`
	Client     string              `json:"client"`
	Provider   string              `json:"provider"`
	Milestones []contractMilestone `json:"milestones"`
}

type contractMilestone struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type contractSignPayload struct {
	ID string `json:"id"`
}

type contractFundPayload struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type contractMilestonePayload struct {
	ID          string `json:"id"`
	MilestoneID string `json:"milestoneId"`
}

type contractDisputePayload struct {
	ID string `json:"id"`
}

type contractResolvePayload struct {
	ID string `json:"id"`
}

// applyContract handles the service contract lifecycle: draft ->
// negotiating -> pending_signature -> pending_funding -> active ->
// completed, with a disputed/resolved side branch, and the milestone
// sub-lifecycle pending -> submitted -> approved|rejected.
func applyContract(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "contract.create":
		var p contractCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if env.Issuer != p.Client {
			return nil, fmt.Errorf("%w: only the client may create the contract", ErrUnauthorizedIssuer)
		}
		if _, ok := s.Contracts[p.ID]; ok {
			return nil, fmt.Errorf("%w: contract %s already exists", ErrResourcePrevConflict, p.ID)
		}
		milestones := make(map[string]*Milestone, len(p.Milestones))
		for _, m := range p.Milestones {
			amt, err := parseAmount(m.Amount)
			if err != nil {
				return nil, err
			}
			milestones[m.ID] = &Milestone{ID: m.ID, Status: MilestonePending, Amount: amt}
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Contracts[p.ID] = &Contract{ID: p.ID, Client: p.Client, Provider: p.Provider, Status: ContractDraft, Milestones: milestones}
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash}}, nil

	case "contract.sign":
		var p contractSignPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, err := requireContract(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client && env.Issuer != c.Provider {
			return nil, fmt.Errorf("%w: only a party to the contract may sign it", ErrUnauthorizedIssuer)
		}
		if c.Status != ContractDraft && c.Status != ContractNegotiating && c.Status != ContractPendingSignature {
			return nil, fmt.Errorf("%w: contract %s is %s, cannot sign", ErrInvalidStatusTransition, p.ID, c.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		if c.Status == ContractDraft || c.Status == ContractNegotiating {
			c.Status = ContractPendingSignature
		} else {
			c.Status = ContractPendingFunding
		}
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.fund":
		var p contractFundPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, err := requireContract(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client {
			return nil, fmt.Errorf("%w: only the client may fund the contract", ErrUnauthorizedIssuer)
		}
		if c.Status != ContractPendingFunding {
			return nil, fmt.Errorf("%w: contract %s is %s, expected pending_funding", ErrInvalidStatusTransition, p.ID, c.Status)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if s.balance(c.Client).Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: client %s cannot fund %s", ErrInsufficientBalance, c.Client, p.Amount)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		s.Balances[c.Client] = new(big.Int).Sub(s.balance(c.Client), amount)
		c.Status = ContractActive
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.milestone.submit":
		var p contractMilestonePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, m, err := requireMilestone(s, p.ID, p.MilestoneID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Provider {
			return nil, fmt.Errorf("%w: only the provider may submit a milestone", ErrUnauthorizedIssuer)
		}
		if c.Status != ContractActive {
			return nil, fmt.Errorf("%w: contract %s is not active", ErrInvalidStatusTransition, p.ID)
		}
		if m.Status != MilestonePending && m.Status != MilestoneRejected {
			return nil, fmt.Errorf("%w: milestone %s is %s", ErrInvalidStatusTransition, p.MilestoneID, m.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		m.Status = MilestoneSubmitted
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.milestone.approve":
		var p contractMilestonePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, m, err := requireMilestone(s, p.ID, p.MilestoneID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client {
			return nil, fmt.Errorf("%w: only the client may approve a milestone", ErrUnauthorizedIssuer)
		}
		if m.Status != MilestoneSubmitted {
			return nil, fmt.Errorf("%w: milestone %s is %s, expected submitted", ErrInvalidStatusTransition, p.MilestoneID, m.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		// Approval transitions the milestone but does not itself move funds:
		// the reducer exposes the derived payout (m.Amount, to c.Provider) so
		// the publisher can chain an escrow.release or wallet.transfer event.
		m.Status = MilestoneApproved
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.milestone.reject":
		var p contractMilestonePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, m, err := requireMilestone(s, p.ID, p.MilestoneID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client {
			return nil, fmt.Errorf("%w: only the client may reject a milestone", ErrUnauthorizedIssuer)
		}
		if m.Status != MilestoneSubmitted {
			return nil, fmt.Errorf("%w: milestone %s is %s, expected submitted", ErrInvalidStatusTransition, p.MilestoneID, m.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		m.Status = MilestoneRejected
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.complete":
		var p contractSignPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, err := requireContract(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client {
			return nil, fmt.Errorf("%w: only the client may mark the contract complete", ErrUnauthorizedIssuer)
		}
		if err := checkContractTransition(c.Status, ContractCompleted); err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		c.Status = ContractCompleted
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.dispute":
		var p contractDisputePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, err := requireContract(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client && env.Issuer != c.Provider {
			return nil, fmt.Errorf("%w: only a party to the contract may open a dispute", ErrUnauthorizedIssuer)
		}
		if err := checkContractTransition(c.Status, ContractDisputed); err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		c.Status = ContractDisputed
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "contract.resolve":
		var p contractResolvePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		c, err := requireContract(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != c.Client && env.Issuer != c.Provider {
			return nil, fmt.Errorf("%w: only a party to the contract may resolve a dispute", ErrUnauthorizedIssuer)
		}
		if err := checkContractTransition(c.Status, ContractResolved); err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceContract, p.ID, env, false); err != nil {
			return nil, err
		}
		c.Status = ContractResolved
		return []HeadUpdate{{Kind: resourceContract, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}

func requireContract(s *State, id string) (*Contract, error) {
	c, ok := s.Contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrResourceNotFound, id)
	}
	return c, nil
}

func requireMilestone(s *State, contractID, milestoneID string) (*Contract, *Milestone, error) {
	c, err := requireContract(s, contractID)
	if err != nil {
		return nil, nil, err
	}
	m, ok := c.Milestones[milestoneID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: milestone %s on contract %s", ErrResourceNotFound, milestoneID, contractID)
	}
	return c, m, nil
}

// checkContractTransition reports whether cur -> next is a permitted edge in
// the contract status DAG.
func checkContractTransition(cur, next string) error {
	for _, allowed := range contractTransitions[cur] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: contract cannot move from %s to %s", ErrInvalidStatusTransition, cur, next)
}
