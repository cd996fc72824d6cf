// Package statefile persists an authenticator's secret and schedule snapshot
// in a single XDR-encoded file that is replaced atomically on every save.
package statefile

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/davecgh/go-xdr/xdr2"
	"github.com/mitchellh/go-homedir"
)

// Version is the current on-disk format.
const Version = 1

// DefaultPath is used when no path is configured.
const DefaultPath = "~/.rf433.dat"

var (
	ErrVersion = errors.New("statefile: unsupported version")
	ErrCorrupt = errors.New("statefile: corrupt state file")
)

// State is the on-disk record.
type State struct {
	Version  uint32
	Mode     uint32
	Profile  string
	Secret   []byte
	Snapshot []byte
	Updated  int64 // unix seconds of the last save
}

// New returns the state of a fresh authenticator.
func New(mode auth.Mode, secret []byte, profile protocol.Profile) (*State, error) {
	a, err := auth.NewWithMode(mode, secret, profile)
	if err != nil {
		return nil, err
	}
	return &State{
		Version:  Version,
		Mode:     uint32(mode),
		Profile:  profile.Name,
		Secret:   append([]byte(nil), secret...),
		Snapshot: a.Save(),
	}, nil
}

// Authenticator rebuilds the authenticator described by s.
func (s *State) Authenticator() (*auth.Authenticator, error) {
	profile, err := protocol.ProfileByName(s.Profile)
	if err != nil {
		return nil, err
	}
	a, err := auth.NewWithMode(auth.Mode(s.Mode), s.Secret, profile)
	if err != nil {
		return nil, err
	}
	if err := a.Restore(s.Snapshot); err != nil {
		return nil, err
	}
	return a, nil
}

// Expand resolves a leading ~ in filename.
func Expand(filename string) (string, error) {
	if filename == "" {
		filename = DefaultPath
	}
	return homedir.Expand(filename)
}

// Load reads the state file at filename.
func Load(filename string) (*State, error) {
	filename, err := Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var s State
	if _, err := xdr.Unmarshal(bytes.NewReader(b), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, s.Version)
	}
	return &s, nil
}

// Save writes s to a temporary file next to filename and renames it into
// place, so a crash leaves either the old or the new state.
func Save(filename string, s *State) error {
	filename, err := Expand(filename)
	if err != nil {
		return err
	}
	s.Version = Version
	s.Updated = time.Now().Unix()

	dir, base := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	f, err := ioutil.TempFile(dir, base)
	if err != nil {
		return fmt.Errorf("could not create state file: %v", err)
	}
	// closed by hand so the rename also works on windows
	if _, err := xdr.Marshal(f, s); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("could not marshal state: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("could not sync state file: %v", err)
	}
	f.Close()

	if err := os.Rename(f.Name(), filename); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("could not rename state file: %v", err)
	}
	return nil
}

// Exists reports whether a state file is present at filename.
func Exists(filename string) bool {
	filename, err := Expand(filename)
	if err != nil {
		return false
	}
	_, err = os.Stat(filename)
	return err == nil
}
