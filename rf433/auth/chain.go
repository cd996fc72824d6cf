package auth

import (
	"github.com/TheusHen/rf433/rf433/crypto"
	"github.com/TheusHen/rf433/rf433/crypto/ratchet"
)

// ChainSchedule keys index i with the i-th value of a hash chain seeded by
// the secret. Consumed values are erased.
type ChainSchedule struct {
	chain *ratchet.Chain
}

func NewChainSchedule(secret []byte) (*ChainSchedule, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c, err := ratchet.NewChain(secret)
	if err != nil {
		return nil, err
	}
	return &ChainSchedule{chain: c}, nil
}

func (s *ChainSchedule) Mode() Mode { return ModeChain }

func (s *ChainSchedule) Lower() uint64 { return s.chain.Lower() }

// Chain exposes the underlying store for inspection.
func (s *ChainSchedule) Chain() *ratchet.Chain { return s.chain }

// KeyFor derives without committing, so a packet that later fails
// verification leaves the store as it was.
func (s *ChainSchedule) KeyFor(index uint64) (crypto.Key, error) {
	v, err := s.chain.Derive(index)
	if err != nil {
		return crypto.Key{}, err
	}
	return crypto.Key{Mode: crypto.KeyModeChain, Material: v}, nil
}

func (s *ChainSchedule) Advance(index uint64) {
	if index < s.chain.Lower() {
		return
	}
	s.chain.ExtendTo(index)
	s.chain.CancelThrough(index)
}

// MarshalState returns value(lower) || byte(lower).
func (s *ChainSchedule) MarshalState() []byte {
	value, pos := s.chain.Export()
	return append(value, pos)
}

func (s *ChainSchedule) UnmarshalState(b []byte) error {
	if len(b) < 2 {
		return ErrInvalidSnapshot
	}
	if err := s.chain.Import(b[:len(b)-1], b[len(b)-1]); err != nil {
		return ErrInvalidSnapshot
	}
	return nil
}
