package auth

import (
	"fmt"

	"github.com/TheusHen/rf433/rf433/crypto"
)

// Mode identifies a key schedule variant.
type Mode uint8

const (
	ModeDirect Mode = 1
	ModeChain  Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeChain:
		return "chain"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "direct":
		return ModeDirect, nil
	case "chain":
		return ModeChain, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// KeySchedule produces key material per sequence index and tracks the lower
// bound of the acceptance window.
type KeySchedule interface {
	Mode() Mode
	// Lower returns the oldest index not yet consumed.
	Lower() uint64
	// KeyFor returns the key for index without changing any state. Indices
	// in [Lower(), Lower()+255] are always served.
	KeyFor(index uint64) (crypto.Key, error)
	// Advance consumes every index up to and including index.
	Advance(index uint64)
	MarshalState() []byte
	UnmarshalState(b []byte) error
}

// NewSchedule builds the schedule selected by mode.
func NewSchedule(mode Mode, secret []byte) (KeySchedule, error) {
	switch mode {
	case ModeDirect:
		return NewDirectSchedule(secret)
	case ModeChain:
		return NewChainSchedule(secret)
	default:
		return nil, ErrUnknownMode
	}
}
