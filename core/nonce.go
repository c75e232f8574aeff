package core

// nonceWindow tracks the most recently accepted nonces for a single issuer,
// tolerating out-of-order delivery within NonceWindow while rejecting both
// reuse and nonces that have fallen below the retained floor.
type nonceWindow struct {
	highest uint64
	hasSeen bool
	seen    map[uint64]bool
}

func newNonceWindow() *nonceWindow {
	return &nonceWindow{seen: make(map[uint64]bool)}
}

func (w *nonceWindow) floor() uint64 {
	if !w.hasSeen || w.highest < NonceWindow-1 {
		return 0
	}
	return w.highest - NonceWindow + 1
}

// validate reports whether nonce is acceptable without recording it. Callers
// must call accept only once the rest of the event has also been accepted,
// so a reducer failure leaves the window untouched and the issuer free to
// resubmit the same nonce.
func (w *nonceWindow) validate(nonce uint64) error {
	if w.hasSeen && nonce < w.floor() {
		return ErrEventNonceWindow
	}
	if w.seen[nonce] {
		return ErrEventNonceReused
	}
	return nil
}

// accept records nonce as used. Must only be called after validate has
// passed and the event it guards has been fully applied.
func (w *nonceWindow) accept(nonce uint64) {
	w.seen[nonce] = true
	if !w.hasSeen || nonce > w.highest {
		w.highest = nonce
		w.hasSeen = true
		floor := w.floor()
		for n := range w.seen {
			if n < floor {
				delete(w.seen, n)
			}
		}
	}
}

// nonceFor returns (creating if absent) the tracker for issuer. Callers must
// hold the state writer lock.
func (s *State) nonceFor(issuer string) *nonceWindow {
	w, ok := s.nonces[issuer]
	if !ok {
		w = newNonceWindow()
		s.nonces[issuer] = w
	}
	return w
}
