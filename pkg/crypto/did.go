package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

// DIDMethod is the method segment used for every identity this node mints.
// A fixed method keeps DID parsing total: implementations that see a
// different method reject it rather than guessing at an unknown encoding.
const DIDMethod = "ledgermesh"

// Address is a 20-byte short-form wallet identifier derived from a public
// key, used for ledger bookkeeping instead of the full DID.
type Address [20]byte

func (a Address) String() string { return fmt.Sprintf("%x", a[:]) }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Multibase returns the multibase-encoded (base58btc) form of b, used for the
// envelope's pub field.
func Multibase(b []byte) (string, error) {
	s, err := multibase.Encode(multibase.Base58BTC, b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCanonicalize, err)
	}
	return s, nil
}

// MultibaseDecode reverses Multibase.
func MultibaseDecode(s string) ([]byte, error) {
	_, data, err := multibase.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return data, nil
}

// DIDFromPublicKey derives a did:ledgermesh:<multibase-pubkey> identifier
// from a raw Ed25519 public key.
func DIDFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
	}
	mb, err := Multibase(pub)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("did:%s:%s", DIDMethod, mb), nil
}

// PublicKeyFromDID recovers the 32-byte Ed25519 public key embedded in a DID.
// It fails with ErrDIDInvalid for any malformed or wrong-method identifier.
func PublicKeyFromDID(did string) (ed25519.PublicKey, error) {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) != 3 || parts[0] != "did" {
		return nil, fmt.Errorf("%w: malformed DID %q", ErrDIDInvalid, did)
	}
	if parts[1] != DIDMethod {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrDIDInvalid, parts[1])
	}
	raw, err := MultibaseDecode(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDIDInvalid, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: embedded key has wrong length", ErrDIDInvalid)
	}
	return ed25519.PublicKey(raw), nil
}

// AddressFromPublicKey derives the short wallet Address for a public key:
// the low 20 bytes of its SHA-256 digest, mirroring the account-address
// convention used across the ledger reducers.
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	sum := sha256.Sum256(pub)
	var addr Address
	copy(addr[:], sum[len(sum)-20:])
	return addr
}

// AddressFromDID is a convenience wrapper combining PublicKeyFromDID and
// AddressFromPublicKey.
func AddressFromDID(did string) (Address, error) {
	pub, err := PublicKeyFromDID(did)
	if err != nil {
		return Address{}, err
	}
	return AddressFromPublicKey(pub), nil
}
