package core

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// decodePayload unmarshals env's payload into v, a pointer to a
// type-specific payload record selected by env.Type.
func decodePayload(env *Envelope, v interface{}) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: payload for %s: %v", ErrPeerMessageInvalid, env.Type, err)
	}
	return nil
}

// parseAmount parses a decimal string into an arbitrary-precision,
// non-negative integer, per the numeric policy in §4.1/§9: externally
// supplied amounts are decimal strings, parsed before any arithmetic.
func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a valid integer amount", ErrPeerMessageInvalid, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %q is negative", ErrPeerMessageInvalid, s)
	}
	return n, nil
}
