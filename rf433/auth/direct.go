package auth

import (
	"encoding/binary"

	"github.com/TheusHen/rf433/rf433/crypto"
)

// MaxDirectSecretSize bounds the secret so that secret || index fits in one
// SHA-256 block. Longer secrets are truncated.
const MaxDirectSecretSize = crypto.DefaultSecretSize

const indexSize = 8

// DirectSchedule keys every index with HMAC-SHA256(secret || LE64(index)).
// It is stateless apart from the lower bound and offers no forward secrecy.
type DirectSchedule struct {
	secret []byte
	lower  uint64
}

func NewDirectSchedule(secret []byte) (*DirectSchedule, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &DirectSchedule{secret: clampSecret(secret)}, nil
}

func clampSecret(secret []byte) []byte {
	if len(secret) > MaxDirectSecretSize {
		secret = secret[:MaxDirectSecretSize]
	}
	return append([]byte(nil), secret...)
}

func (d *DirectSchedule) Mode() Mode { return ModeDirect }

func (d *DirectSchedule) Lower() uint64 { return d.lower }

func (d *DirectSchedule) KeyFor(index uint64) (crypto.Key, error) {
	material := make([]byte, len(d.secret)+indexSize)
	copy(material, d.secret)
	binary.LittleEndian.PutUint64(material[len(d.secret):], index)
	return crypto.Key{Mode: crypto.KeyModeHMAC, Material: material}, nil
}

func (d *DirectSchedule) Advance(index uint64) {
	if index >= d.lower {
		d.lower = index + 1
	}
}

// MarshalState returns the lower bound as 8 little-endian bytes.
func (d *DirectSchedule) MarshalState() []byte {
	b := make([]byte, indexSize)
	binary.LittleEndian.PutUint64(b, d.lower)
	return b
}

// MarshalStateWithSecret appends the secret to the state, for provisioning
// tools that bootstrap a fresh instance from one blob.
func (d *DirectSchedule) MarshalStateWithSecret() []byte {
	return append(d.MarshalState(), d.secret...)
}

// UnmarshalState accepts the 8-byte state, optionally followed by a secret
// that replaces the current one.
func (d *DirectSchedule) UnmarshalState(b []byte) error {
	if len(b) < indexSize {
		return ErrInvalidSnapshot
	}
	d.lower = binary.LittleEndian.Uint64(b[:indexSize])
	if len(b) > indexSize {
		d.secret = clampSecret(b[indexSize:])
	}
	return nil
}
