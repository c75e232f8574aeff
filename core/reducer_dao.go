package core

import (
	"fmt"
	"math/big"
)

const resourceProposal = "proposal"

type daoCreatePayload struct {
	ID string `json:"id"`
}

type daoStartVotingPayload struct {
	ID    string `json:"id"`
	Start int64  `json:"votingStart"`
	End   int64  `json:"votingEnd"`
}

type daoVotePayload struct {
	ID     string `json:"id"`
	Power  string `json:"power"`
	Support bool  `json:"support"`
}

type daoClosePayload struct {
	ID string `json:"id"`
}

type daoQueuePayload struct {
	ID            string `json:"id"`
	TimelockUntil int64  `json:"timelockUntil"`
}

type daoExecutePayload struct {
	ID string `json:"id"`
}

type daoCancelPayload struct {
	ID string `json:"id"`
}

// applyDAO handles the governance proposal lifecycle: discussion -> voting
// -> (passed -> queued -> executed) | rejected | cancelled.
func applyDAO(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "dao.proposal.create":
		var p daoCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if _, ok := s.Proposals[p.ID]; ok {
			return nil, fmt.Errorf("%w: proposal %s already exists", ErrResourcePrevConflict, p.ID)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, true); err != nil {
			return nil, err
		}
		s.Proposals[p.ID] = &DAOProposal{
			ID: p.ID, Proposer: env.Issuer, Status: ProposalDiscussion,
			VotesFor: big.NewInt(0), VotesAgainst: big.NewInt(0), Voters: make(map[string]bool),
		}
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash}}, nil

	case "dao.proposal.start_voting":
		var p daoStartVotingPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		prop, err := requireProposal(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != prop.Proposer {
			return nil, fmt.Errorf("%w: only the proposer may open voting", ErrUnauthorizedIssuer)
		}
		if prop.Status != ProposalDiscussion {
			return nil, fmt.Errorf("%w: proposal %s is %s, expected discussion", ErrInvalidStatusTransition, p.ID, prop.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, false); err != nil {
			return nil, err
		}
		prop.Status = ProposalVoting
		prop.VotingStart = p.Start
		prop.VotingEnd = p.End
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "dao.proposal.vote":
		var p daoVotePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		prop, err := requireProposal(s, p.ID)
		if err != nil {
			return nil, err
		}
		if prop.Status != ProposalVoting {
			return nil, fmt.Errorf("%w: proposal %s is not in its voting phase", ErrDAOVoteOutsideWindow, p.ID)
		}
		if env.TS < prop.VotingStart || env.TS > prop.VotingEnd {
			return nil, fmt.Errorf("%w: vote at %d falls outside [%d,%d]", ErrDAOVoteOutsideWindow, env.TS, prop.VotingStart, prop.VotingEnd)
		}
		if prop.Voters[env.Issuer] {
			return nil, fmt.Errorf("%w: %s has already voted on proposal %s", ErrUnauthorizedIssuer, env.Issuer, p.ID)
		}
		power, err := parseAmount(p.Power)
		if err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, false); err != nil {
			return nil, err
		}
		if p.Support {
			prop.VotesFor = new(big.Int).Add(prop.VotesFor, power)
		} else {
			prop.VotesAgainst = new(big.Int).Add(prop.VotesAgainst, power)
		}
		prop.Voters[env.Issuer] = true
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "dao.proposal.close_voting":
		var p daoClosePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		prop, err := requireProposal(s, p.ID)
		if err != nil {
			return nil, err
		}
		if prop.Status != ProposalVoting {
			return nil, fmt.Errorf("%w: proposal %s is %s, expected voting", ErrInvalidStatusTransition, p.ID, prop.Status)
		}
		if env.TS < prop.VotingEnd {
			return nil, fmt.Errorf("%w: voting on proposal %s has not yet ended", ErrDAOVoteOutsideWindow, p.ID)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, false); err != nil {
			return nil, err
		}
		if prop.VotesFor.Cmp(prop.VotesAgainst) > 0 {
			prop.Status = ProposalPassed
		} else {
			prop.Status = ProposalRejected
		}
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "dao.proposal.queue":
		var p daoQueuePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		prop, err := requireProposal(s, p.ID)
		if err != nil {
			return nil, err
		}
		if prop.Status != ProposalPassed {
			return nil, fmt.Errorf("%w: proposal %s is %s, expected passed", ErrInvalidStatusTransition, p.ID, prop.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, false); err != nil {
			return nil, err
		}
		prop.Status = ProposalQueued
		prop.TimelockUntil = p.TimelockUntil
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "dao.proposal.execute":
		var p daoExecutePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		prop, err := requireProposal(s, p.ID)
		if err != nil {
			return nil, err
		}
		if prop.Status != ProposalQueued {
			return nil, fmt.Errorf("%w: proposal %s is %s, expected queued", ErrInvalidStatusTransition, p.ID, prop.Status)
		}
		if env.TS < prop.TimelockUntil {
			return nil, fmt.Errorf("%w: proposal %s timelock has not elapsed", ErrDAOTimelockNotElapsed, p.ID)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, false); err != nil {
			return nil, err
		}
		prop.Status = ProposalExecuted
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "dao.proposal.cancel":
		var p daoCancelPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		prop, err := requireProposal(s, p.ID)
		if err != nil {
			return nil, err
		}
		if env.Issuer != prop.Proposer {
			return nil, fmt.Errorf("%w: only the proposer may cancel the proposal", ErrUnauthorizedIssuer)
		}
		if prop.Status == ProposalExecuted || prop.Status == ProposalRejected || prop.Status == ProposalCancelled {
			return nil, fmt.Errorf("%w: proposal %s is %s", ErrInvalidStatusTransition, p.ID, prop.Status)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceProposal, p.ID, env, false); err != nil {
			return nil, err
		}
		prop.Status = ProposalCancelled
		return []HeadUpdate{{Kind: resourceProposal, ID: p.ID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}

func requireProposal(s *State, id string) (*DAOProposal, error) {
	p, ok := s.Proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: proposal %s", ErrResourceNotFound, id)
	}
	return p, nil
}
