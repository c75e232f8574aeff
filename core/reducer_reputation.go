package core

import "fmt"

const resourceReputation = "reputation"

type reputationRecordPayload struct {
	Subject string `json:"subject"`
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason"`
}

// applyReputation handles reputation.record, an append-only adjustment to a
// subject's standing (e.g. following order completion or a resolved
// dispute). Any issuer may submit a record; reputation is a derived signal,
// not an authorization boundary, so the universal resourcePrev precondition
// is the only gate.
func applyReputation(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "reputation.record":
		var p reputationRecordPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.Subject == "" {
			return nil, fmt.Errorf("%w: reputation record requires a subject", ErrPeerMessageInvalid)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceReputation, p.Subject, env, true); err != nil {
			return nil, err
		}
		r, ok := s.Reputations[p.Subject]
		if !ok {
			r = &Reputation{Subject: p.Subject}
			s.Reputations[p.Subject] = r
		}
		r.Score += p.Delta
		r.Events++
		return []HeadUpdate{{Kind: resourceReputation, ID: p.Subject, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}
