package rf433

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/statefile"
	"github.com/pion/logging"
)

var ErrSelfCheck = errors.New("rf433: encoded packet failed self-check")

// LinkConfig configures a Link.
type LinkConfig struct {
	// StateFile is the path of the persisted state. Empty keeps the state
	// in memory only.
	StateFile string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Link is an authenticator whose state is saved after every packet it
// produces or accepts.
type Link struct {
	mu    sync.Mutex
	path  string
	state *statefile.State
	auth  *auth.Authenticator
	log   logging.LeveledLogger
}

// OpenLink loads the state file named in cfg.
func OpenLink(cfg LinkConfig) (*Link, error) {
	s, err := statefile.Load(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	return NewLink(cfg, s)
}

// NewLink wraps an existing state. The state is written to cfg.StateFile
// immediately.
func NewLink(cfg LinkConfig, s *statefile.State) (*Link, error) {
	a, err := s.Authenticator()
	if err != nil {
		return nil, err
	}
	l := &Link{path: cfg.StateFile, state: s, auth: a}
	if cfg.LoggerFactory != nil {
		l.log = cfg.LoggerFactory.NewLogger("link")
	}
	if err := l.persist(); err != nil {
		return nil, err
	}
	if l.log != nil {
		l.log.Infof("%s link ready, profile %s, position %d", a.Mode(), a.Profile().Name, a.Lower())
	}
	return l, nil
}

// Authenticator returns the wrapped authenticator. Packets processed
// through it directly are not persisted.
func (l *Link) Authenticator() *auth.Authenticator { return l.auth }

func (l *Link) Lower() uint64 { return l.auth.Lower() }

func (l *Link) Profile() protocol.Profile { return l.auth.Profile() }

func (l *Link) persist() error {
	l.state.Snapshot = l.auth.Save()
	if l.path == "" {
		return nil
	}
	if err := statefile.Save(l.path, l.state); err != nil {
		if l.log != nil {
			l.log.Errorf("saving state: %v", err)
		}
		return err
	}
	return nil
}

// Encode authenticates payload, checks that a receiver in the pre-encode
// state accepts the result, and saves the new state before returning the
// packet. A packet is never returned unless its index is on disk.
func (l *Link) Encode(payload []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := l.auth.Save()
	packet, err := l.auth.Encode(payload)
	if err != nil {
		return nil, err
	}
	if err := l.selfCheck(before, payload, packet); err != nil {
		if rerr := l.auth.Restore(before); rerr != nil {
			return nil, fmt.Errorf("%v (restore: %v)", err, rerr)
		}
		return nil, err
	}
	if err := l.persist(); err != nil {
		l.rollback(before)
		return nil, err
	}
	if l.log != nil {
		l.log.Debugf("encoded %d byte packet, seq %d", len(packet), packet[len(packet)-l.auth.Profile().Overhead()])
	}
	return packet, nil
}

func (l *Link) selfCheck(before, payload, packet []byte) error {
	rx := *l.state
	rx.Snapshot = before
	check, err := rx.Authenticator()
	if err != nil {
		return err
	}
	got, err := check.Decode(packet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelfCheck, err)
	}
	if !bytes.HasPrefix(got, payload) {
		return ErrSelfCheck
	}
	return nil
}

// Decode verifies packet and saves the advanced state on success. If the
// state cannot be saved the packet is not consumed and may be retried.
func (l *Link) Decode(packet []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := l.auth.Save()
	payload, err := l.auth.Decode(packet)
	if err != nil {
		return nil, err
	}
	if err := l.persist(); err != nil {
		l.rollback(before)
		return nil, err
	}
	return payload, nil
}

// rollback returns the authenticator to a snapshot taken earlier in the
// same call.
func (l *Link) rollback(before []byte) {
	if err := l.auth.Restore(before); err != nil && l.log != nil {
		l.log.Errorf("restoring state: %v", err)
	}
	l.state.Snapshot = before
}
