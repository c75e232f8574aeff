package crypto

import "errors"

// Stable error codes surfaced by the crypto substrate, per the envelope and
// resource error taxonomy.
var (
	ErrInvalidKey       = errors.New("CRYPTO_INVALID_KEY")
	ErrInvalidSignature = errors.New("CRYPTO_INVALID_SIGNATURE")
	ErrCanonicalize     = errors.New("CRYPTO_CANONICALIZE")
	ErrDIDInvalid       = errors.New("DID_INVALID")
)
