package core

import "errors"

// Error codes returned by envelope validation, reducers, and the event
// store. Each is a sentinel compared with errors.Is after wrapping with
// fmt.Errorf("%w: ...", <code>), so callers can match on code without
// parsing messages.
var (
	ErrEventTooLarge          = errors.New("EVENT_TOO_LARGE")
	ErrEventHashMismatch      = errors.New("EVENT_HASH_MISMATCH")
	ErrEventSignatureInvalid  = errors.New("EVENT_SIGNATURE_INVALID")
	ErrEventNonceReused       = errors.New("EVENT_NONCE_REUSED")
	ErrEventNonceWindow       = errors.New("EVENT_NONCE_WINDOW_EXCEEDED")
	ErrDIDInvalid             = errors.New("DID_INVALID")
	ErrResourcePrevConflict   = errors.New("RESOURCE_PREV_CONFLICT")
	ErrResourceNotFound       = errors.New("RESOURCE_NOT_FOUND")
	ErrUnauthorizedIssuer     = errors.New("UNAUTHORIZED_ISSUER")
	ErrInsufficientBalance    = errors.New("INSUFFICIENT_BALANCE")
	ErrInvalidStatusTransition = errors.New("INVALID_STATUS_TRANSITION")
	ErrEscrowNotExpired       = errors.New("ESCROW_NOT_EXPIRED")
	ErrEscrowSettled          = errors.New("ESCROW_SETTLED")
	ErrBidInvalidState        = errors.New("BID_INVALID_STATE")
	ErrLeaseExpired           = errors.New("LEASE_EXPIRED")
	ErrDAOVoteOutsideWindow   = errors.New("DAO_VOTE_OUTSIDE_WINDOW")
	ErrDAOTimelockNotElapsed = errors.New("DAO_TIMELOCK_NOT_ELAPSED")
	ErrStoreIO                = errors.New("STORE_IO")
	ErrStoreCorrupt           = errors.New("STORE_CORRUPT")
	ErrPeerMessageInvalid     = errors.New("PEER_MESSAGE_INVALID")
	ErrPeerSignatureInvalid   = errors.New("PEER_SIGNATURE_INVALID")
)
