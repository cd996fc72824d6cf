package protocol

import (
	"errors"
	"fmt"

	"github.com/TheusHen/rf433/rf433/crypto"
)

var (
	ErrMalformedPacket = errors.New("protocol: malformed packet")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	ErrEmptyPayload    = errors.New("protocol: empty payload")
	ErrDigestSize      = errors.New("protocol: digest size does not match profile")
)

// Packet is a decoded wire packet.
// Format:
//
//	N bytes: payload
//	1 byte:  sequence (index mod 256)
//	M bytes: truncated digest
type Packet struct {
	Payload []byte
	Seq     byte
	Digest  []byte
}

// Codec serializes packets for one profile and computes their digests.
type Codec struct {
	profile Profile
}

func NewCodec(p Profile) (*Codec, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Codec{profile: p}, nil
}

func (c *Codec) Profile() Profile { return c.profile }

// Pad returns the payload as it appears on the wire. Fixed profiles zero-pad
// short payloads.
func (c *Codec) Pad(payload []byte) ([]byte, error) {
	p := c.profile
	if p.Fixed() {
		if len(payload) > p.PayloadSize {
			return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), p.PayloadSize)
		}
		out := make([]byte, p.PayloadSize)
		copy(out, payload)
		return out, nil
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if p.MaxPayload > 0 && len(payload) > p.MaxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), p.MaxPayload)
	}
	return append([]byte(nil), payload...), nil
}

// Digest computes the truncated digest over payload || seq.
func (c *Codec) Digest(payload []byte, seq byte, key crypto.Key) []byte {
	sum := crypto.Sum(key, payload, []byte{seq})
	return sum[:c.profile.DigestSize]
}

// Verify recomputes the digest of p under key and compares in constant time.
func (c *Codec) Verify(p Packet, key crypto.Key) bool {
	return crypto.Equal(c.Digest(p.Payload, p.Seq, key), p.Digest)
}

// EncodeWire concatenates an already padded payload, its sequence byte and digest.
func (c *Codec) EncodeWire(payload []byte, seq byte, digest []byte) ([]byte, error) {
	if len(digest) != c.profile.DigestSize {
		return nil, ErrDigestSize
	}
	if c.profile.Fixed() && len(payload) != c.profile.PayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, profile fixes %d",
			ErrMalformedPacket, len(payload), c.profile.PayloadSize)
	}
	out := make([]byte, 0, len(payload)+1+len(digest))
	out = append(out, payload...)
	out = append(out, seq)
	out = append(out, digest...)
	return out, nil
}

// DecodeWire splits a wire packet. The returned slices alias b.
func (c *Codec) DecodeWire(b []byte) (Packet, error) {
	p := c.profile
	if p.Fixed() {
		if len(b) != p.PacketSize(0) {
			return Packet{}, fmt.Errorf("%w: length %d, want %d", ErrMalformedPacket, len(b), p.PacketSize(0))
		}
	} else if len(b) <= p.Overhead() {
		return Packet{}, fmt.Errorf("%w: length %d too short", ErrMalformedPacket, len(b))
	}
	n := len(b) - p.Overhead()
	return Packet{
		Payload: b[:n],
		Seq:     b[n],
		Digest:  b[n+1:],
	}, nil
}
