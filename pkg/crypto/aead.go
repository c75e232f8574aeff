package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// SealAES256GCM encrypts plaintext under key (32 bytes) with random-nonce
// AES-256-GCM, returning nonce||ciphertext||tag.
func SealAES256GCM(key, plaintext, aad []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: AES-256 key must be 32 bytes", ErrInvalidKey)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plaintext, aad)
	return append(nonce, ct...), nil
}

// OpenAES256GCM reverses SealAES256GCM.
func OpenAES256GCM(key, blob, aad []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: AES-256 key must be 32 bytes", ErrInvalidKey)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidSignature)
	}
	nonce, ct := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pt, nil
}

// X25519SharedSecret computes the Diffie-Hellman shared point between a local
// scalar and a remote public point, used to derive a per-recipient key
// envelope before HKDF expansion.
func X25519SharedSecret(priv, pub [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	copy(out[:], shared)
	return out, nil
}

// HKDFSHA256 expands secret into a size-byte key using HKDF-SHA256 with the
// given salt and info, per RFC 5869.
func HKDFSHA256(secret, salt, info []byte, size int) ([]byte, error) {
	r := hkdf.New(newSHA256, secret, salt, info)
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return out, nil
}
