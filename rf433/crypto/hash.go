package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// HashSize is the untruncated digest size and the width of a chain value.
const HashSize = sha256.Size

// KeyMode selects how key material is mixed into a packet digest.
type KeyMode uint8

const (
	// KeyModeHMAC keys HMAC-SHA256 with the material.
	KeyModeHMAC KeyMode = iota + 1
	// KeyModeChain appends the material to a plain SHA-256 over the message.
	// The material is a chain value nobody without the secret can recompute.
	KeyModeChain
)

func (m KeyMode) String() string {
	switch m {
	case KeyModeHMAC:
		return "HMAC"
	case KeyModeChain:
		return "CHAIN"
	default:
		return "UNKNOWN"
	}
}

// Key is the key material a schedule hands out for one sequence index.
type Key struct {
	Mode     KeyMode
	Material []byte
}

// Sum computes the full digest of the concatenated parts under key.
func Sum(key Key, parts ...[]byte) []byte {
	var h hash.Hash
	switch key.Mode {
	case KeyModeHMAC:
		h = hmac.New(sha256.New, key.Material)
	case KeyModeChain:
		h = sha256.New()
	default:
		panic("crypto: unknown key mode")
	}
	for _, p := range parts {
		h.Write(p)
	}
	if key.Mode == KeyModeChain {
		h.Write(key.Material)
	}
	return h.Sum(nil)
}

// ChainStep derives the chain value that follows prev.
func ChainStep(prev, secret []byte) []byte {
	h := sha256.New()
	h.Write(prev)
	h.Write(secret)
	return h.Sum(nil)
}

// Equal compares two digests in constant time.
func Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
