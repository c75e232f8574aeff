package core

import "strings"

// domain returns the dot-prefix of a dotted event type, e.g. "wallet" for
// "wallet.transfer".
func domain(typ string) string {
	if i := strings.IndexByte(typ, '.'); i >= 0 {
		return typ[:i]
	}
	return typ
}

// Apply is the top-level reducer: apply(state, envelope) -> state'. It
// verifies the envelope cryptographically, enforces the per-issuer nonce
// window, and dispatches by type prefix to the matching domain reducer.
// Unknown domains are no-ops so that new event types can appear on the log
// without breaking older reducers.
//
// On success it returns the resource-chain head updates the caller must
// pass to EventStore.Append atomically with the log write. On failure, no
// field of state has been mutated.
func Apply(s *State, env *Envelope) ([]HeadUpdate, error) {
	if err := env.Verify(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.nonceFor(env.Issuer)
	if err := w.validate(env.Nonce); err != nil {
		return nil, err
	}

	var heads []HeadUpdate
	var err error
	switch domain(env.Type) {
	case "identity":
		heads, err = applyIdentity(s, env)
	case "wallet":
		heads, err = applyWallet(s, env)
	case "escrow":
		heads, err = applyEscrow(s, env)
	case "contract":
		heads, err = applyContract(s, env)
	case "market":
		heads, err = applyMarket(s, env)
	case "reputation":
		heads, err = applyReputation(s, env)
	case "dao":
		heads, err = applyDAO(s, env)
	default:
		w.accept(env.Nonce)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.accept(env.Nonce)
	for _, h := range heads {
		setResourceHead(s, h.Kind, h.ID, h.NewHead)
	}
	return heads, nil
}
