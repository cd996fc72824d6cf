package ratchet

import (
	"bytes"
	"errors"

	"github.com/TheusHen/rf433/rf433/crypto"
)

var (
	ErrChainExhausted = errors.New("ratchet: chain store exhausted")
	ErrEmptySecret    = errors.New("ratchet: empty secret")
	ErrIndexErased    = errors.New("ratchet: index already erased")
	ErrIndexTooFar    = errors.New("ratchet: index beyond store capacity")
	ErrInvalidState   = errors.New("ratchet: invalid chain state")
)

// StoreSize is the capacity of the circular store. It equals the number of
// indices a one-byte sequence number can tell apart.
const StoreSize = 0x100

// Chain is a hash chain with a bounded look-ahead store and one-way erasure.
//
// Live values cover exactly [Lower(), Upper()). There is always at least one
// live value, so the chain can serve Lower() after any cancellation.
// A Chain is not safe for concurrent use.
type Chain struct {
	secret []byte
	store  [StoreSize][]byte
	lower  uint64
	upper  uint64
}

// NewChain creates a chain seeded with secret at index 0.
func NewChain(secret []byte) (*Chain, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Chain{secret: append([]byte(nil), secret...)}
	c.store[0] = append([]byte(nil), secret...)
	c.upper = 1
	return c, nil
}

// Lower returns the oldest index that has not been consumed.
func (c *Chain) Lower() uint64 { return c.lower }

// Upper returns one past the highest index with a live value.
func (c *Chain) Upper() uint64 { return c.upper }

// Live returns the number of values currently held.
func (c *Chain) Live() int { return int(c.upper - c.lower) }

// ExtendOne derives the value at Upper() and stores it.
// Callers guarantee headroom; a full store is an invariant violation and panics.
func (c *Chain) ExtendOne() {
	if c.upper-c.lower >= StoreSize {
		panic(ErrChainExhausted)
	}
	prev := c.store[(c.upper-1)%StoreSize]
	c.store[c.upper%StoreSize] = crypto.ChainStep(prev, c.secret)
	c.upper++
}

// ExtendTo extends the chain until index has a live value.
func (c *Chain) ExtendTo(index uint64) {
	for c.upper <= index {
		c.ExtendOne()
	}
}

// Value returns a copy of the live value at index.
func (c *Chain) Value(index uint64) ([]byte, bool) {
	if index < c.lower || index >= c.upper {
		return nil, false
	}
	return append([]byte(nil), c.store[index%StoreSize]...), true
}

// Derive returns the value at index without changing the store. Values
// beyond Upper() are computed in scratch memory, which is wiped afterwards.
func (c *Chain) Derive(index uint64) ([]byte, error) {
	if index < c.lower {
		return nil, ErrIndexErased
	}
	if index-c.lower >= StoreSize {
		return nil, ErrIndexTooFar
	}
	if v, ok := c.Value(index); ok {
		return v, nil
	}
	cur := append([]byte(nil), c.store[(c.upper-1)%StoreSize]...)
	for i := c.upper; i <= index; i++ {
		next := crypto.ChainStep(cur, c.secret)
		crypto.Wipe(cur)
		cur = next
	}
	return cur, nil
}

// CancelThrough erases every value in [Lower(), index] and moves Lower() to
// index+1. When the head is the only live value it is extended first, so a
// successor always exists before the head is dropped.
func (c *Chain) CancelThrough(index uint64) {
	for k := c.lower; k <= index; k++ {
		if c.lower == c.upper-1 {
			c.ExtendOne()
		}
		slot := k % StoreSize
		crypto.Wipe(c.store[slot])
		c.store[slot] = nil
		c.lower = k + 1
	}
}

// Export returns the head value and the low byte of its index. Together with
// the secret this is enough to resume the chain.
// WARNING: the head value is key material.
func (c *Chain) Export() (value []byte, position byte) {
	return append([]byte(nil), c.store[c.lower%StoreSize]...), byte(c.lower)
}

// Import replaces the chain state with a single head value at position.
// The full index is not recoverable from a snapshot; the chain resumes with
// Lower() == position, which yields identical sequence bytes and digests.
// The head is either a chain step or, at position 0, the secret itself.
func (c *Chain) Import(value []byte, position byte) error {
	fresh := position == 0 && bytes.Equal(value, c.secret)
	if len(value) != crypto.HashSize && !fresh {
		return ErrInvalidState
	}
	for i := range c.store {
		crypto.Wipe(c.store[i])
		c.store[i] = nil
	}
	c.lower = uint64(position)
	c.upper = c.lower + 1
	c.store[position] = append([]byte(nil), value...)
	return nil
}
