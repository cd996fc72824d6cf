package protocol

import (
	"errors"
	"fmt"

	"github.com/TheusHen/rf433/rf433/crypto"
)

var ErrInvalidProfile = errors.New("protocol: invalid profile")

// Profile fixes the packet geometry of a deployment.
type Profile struct {
	Name string
	// PayloadSize is the fixed payload width N. Zero selects the
	// variable-length layout.
	PayloadSize int
	// MaxPayload bounds variable-length payloads. Zero means unbounded.
	MaxPayload int
	// DigestSize is the truncated digest width M.
	DigestSize int
}

var (
	// RadioProfile is the fixed 13-byte frame sent over 433MHz:
	// 6 payload bytes, 1 sequence byte, 6 digest bytes.
	RadioProfile = Profile{Name: "radio", PayloadSize: 6, DigestSize: 6}

	// NetworkProfile carries variable payloads with a 7-byte digest.
	NetworkProfile = Profile{Name: "network", DigestSize: 7}
)

// ProfileByName returns one of the predefined profiles.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case RadioProfile.Name:
		return RadioProfile, nil
	case NetworkProfile.Name:
		return NetworkProfile, nil
	default:
		return Profile{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidProfile, name)
	}
}

// Fixed reports whether payloads are padded to a fixed width.
func (p Profile) Fixed() bool { return p.PayloadSize > 0 }

// Overhead is the number of bytes added to each payload.
func (p Profile) Overhead() int { return 1 + p.DigestSize }

// PacketSize returns the wire size for a payload of n bytes.
func (p Profile) PacketSize(n int) int {
	if p.Fixed() {
		n = p.PayloadSize
	}
	return n + p.Overhead()
}

func (p Profile) Validate() error {
	if p.DigestSize <= 0 || p.DigestSize > crypto.HashSize {
		return fmt.Errorf("%w: digest size %d", ErrInvalidProfile, p.DigestSize)
	}
	if p.PayloadSize < 0 || p.MaxPayload < 0 {
		return fmt.Errorf("%w: negative payload size", ErrInvalidProfile)
	}
	return nil
}

// MessageType tags a relay frame.
type MessageType uint8

const (
	MessageTypePacket MessageType = 1
	MessageTypePing   MessageType = 2
	MessageTypeClose  MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePacket:
		return "PACKET"
	case MessageTypePing:
		return "PING"
	case MessageTypeClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}
