package fec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

var (
	ErrTooManyLost   = errors.New("fec: too many bytes lost, cannot recover")
	ErrInvalidConfig = errors.New("fec: invalid packet/parity configuration")
	ErrFrameSize     = errors.New("fec: frame size does not match codec")
	ErrErasureIndex  = errors.New("fec: erasure position out of range")
	ErrUncorrectable = errors.New("fec: frame cannot be corrected")
)

// MaxFrameSize is the GF(2^8) limit on data plus parity shards.
const MaxFrameSize = 256

// Codec protects packets of one fixed size.
type Codec struct {
	enc        reedsolomon.Encoder
	packetSize int
	parity     int
}

// NewCodec creates a codec for packets of packetSize bytes followed by
// parity bytes of Reed-Solomon redundancy.
func NewCodec(packetSize, parity int) (*Codec, error) {
	if packetSize <= 0 || parity <= 0 || packetSize+parity > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d+%d", ErrInvalidConfig, packetSize, parity)
	}
	enc, err := reedsolomon.New(packetSize, parity)
	if err != nil {
		return nil, err
	}
	return &Codec{enc: enc, packetSize: packetSize, parity: parity}, nil
}

func (c *Codec) PacketSize() int { return c.packetSize }

func (c *Codec) Parity() int { return c.parity }

// FrameSize is the number of bytes Encode produces.
func (c *Codec) FrameSize() int { return c.packetSize + c.parity }

// Overhead returns the size ratio of a frame to its packet.
func (c *Codec) Overhead() float64 {
	return float64(c.FrameSize()) / float64(c.packetSize)
}

func (c *Codec) shards(frame []byte) [][]byte {
	shards := make([][]byte, len(frame))
	for i := range frame {
		shards[i] = frame[i : i+1 : i+1]
	}
	return shards
}

// Encode returns packet || parity.
func (c *Codec) Encode(packet []byte) ([]byte, error) {
	if len(packet) != c.packetSize {
		return nil, fmt.Errorf("%w: packet is %d bytes, want %d", ErrFrameSize, len(packet), c.packetSize)
	}
	frame := make([]byte, c.FrameSize())
	copy(frame, packet)
	if err := c.enc.Encode(c.shards(frame)); err != nil {
		return nil, err
	}
	return frame, nil
}

// Verify reports whether the parity bytes match the packet bytes.
func (c *Codec) Verify(frame []byte) (bool, error) {
	if len(frame) != c.FrameSize() {
		return false, ErrFrameSize
	}
	return c.enc.Verify(c.shards(frame))
}

// Decode rebuilds the packet from frame, treating the bytes at the given
// positions as lost. frame is not modified.
func (c *Codec) Decode(frame []byte, erasures []int) ([]byte, error) {
	if len(frame) != c.FrameSize() {
		return nil, ErrFrameSize
	}
	if len(erasures) == 0 {
		return append([]byte(nil), frame[:c.packetSize]...), nil
	}
	work := append([]byte(nil), frame...)
	shards := c.shards(work)
	for _, pos := range erasures {
		if pos < 0 || pos >= len(shards) {
			return nil, fmt.Errorf("%w: %d", ErrErasureIndex, pos)
		}
		shards[pos] = nil
	}
	if err := c.enc.ReconstructData(shards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return nil, ErrTooManyLost
		}
		return nil, err
	}
	packet := make([]byte, 0, c.packetSize)
	for i := 0; i < c.packetSize; i++ {
		packet = append(packet, shards[i]...)
	}
	return packet, nil
}

// Correct returns the packet of a frame with at most one damaged byte at an
// unknown position. It needs at least two parity bytes. The second return
// value reports whether a byte was repaired.
func (c *Codec) Correct(frame []byte) ([]byte, bool, error) {
	ok, err := c.Verify(frame)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return append([]byte(nil), frame[:c.packetSize]...), false, nil
	}
	if c.parity < 2 {
		return nil, false, ErrUncorrectable
	}
	for pos := 0; pos < len(frame); pos++ {
		packet, err := c.Decode(frame, []int{pos})
		if err != nil {
			continue
		}
		fixed, err := c.Encode(packet)
		if err != nil {
			continue
		}
		// Any other codeword differs from frame in at least parity bytes.
		fixed[pos] = frame[pos]
		if bytes.Equal(fixed, frame) {
			return packet, true, nil
		}
	}
	return nil, false, ErrUncorrectable
}
