package auth

import (
	"sync"

	"github.com/TheusHen/rf433/rf433/protocol"
)

// Authenticator encodes and verifies packets for one logical sender/receiver
// pair. Calls are serialized internally; each one reads and updates the
// window as a unit.
type Authenticator struct {
	mu       sync.Mutex
	schedule KeySchedule
	codec    *protocol.Codec
	window   *Window
}

// New composes an authenticator from a schedule and a packet profile.
func New(schedule KeySchedule, profile protocol.Profile) (*Authenticator, error) {
	codec, err := protocol.NewCodec(profile)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		schedule: schedule,
		codec:    codec,
		window:   NewWindow(schedule),
	}, nil
}

// NewWithMode builds the schedule for mode and wraps it.
func NewWithMode(mode Mode, secret []byte, profile protocol.Profile) (*Authenticator, error) {
	s, err := NewSchedule(mode, secret)
	if err != nil {
		return nil, err
	}
	return New(s, profile)
}

func (a *Authenticator) Mode() Mode { return a.schedule.Mode() }

func (a *Authenticator) Profile() protocol.Profile { return a.codec.Profile() }

// Lower returns the next index Encode will use, which is also the oldest
// index Decode will still accept.
func (a *Authenticator) Lower() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schedule.Lower()
}

// Encode authenticates payload with the current index and consumes it.
func (a *Authenticator) Encode(payload []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	wire, err := a.codec.Pad(payload)
	if err != nil {
		return nil, err
	}
	index := a.schedule.Lower()
	key, err := a.schedule.KeyFor(index)
	if err != nil {
		return nil, err
	}
	seq := byte(index)
	packet, err := a.codec.EncodeWire(wire, seq, a.codec.Digest(wire, seq, key))
	if err != nil {
		return nil, err
	}
	a.window.Accept(index)
	return packet, nil
}

// Decode verifies packet and returns its payload. A packet that does not
// verify yields ErrAuthenticationFailed and leaves all state untouched.
// Fixed profiles return the padded payload.
func (a *Authenticator) Decode(packet []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.codec.DecodeWire(packet)
	if err != nil {
		return nil, err
	}
	candidate := a.window.Candidate(p.Seq)
	key, err := a.schedule.KeyFor(candidate)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if !a.codec.Verify(p, key) {
		return nil, ErrAuthenticationFailed
	}
	a.window.Accept(candidate)
	return append([]byte(nil), p.Payload...), nil
}

// Save snapshots the schedule state.
func (a *Authenticator) Save() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schedule.MarshalState()
}

// Restore replaces the schedule state with a snapshot taken by Save.
func (a *Authenticator) Restore(snapshot []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schedule.UnmarshalState(snapshot)
}
