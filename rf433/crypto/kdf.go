package crypto

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DefaultSecretSize matches the secret files written by provisioning tools.
// A secret of this size plus an 8-byte index fills exactly one SHA-256 block.
const DefaultSecretSize = 56

var secretInfo = []byte("rf433-shared-secret")

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hk := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSecret stretches a passphrase into a shared secret of the given size.
// The same passphrase and salt always produce the same secret, so sender and
// receiver can be provisioned independently.
func DeriveSecret(passphrase, salt []byte, size int) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("crypto: empty passphrase")
	}
	if size <= 0 {
		size = DefaultSecretSize
	}
	return DeriveKey(passphrase, salt, secretInfo, size)
}
