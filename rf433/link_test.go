package rf433

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/statefile"
	"github.com/pion/logging"
)

func newState(t *testing.T, mode auth.Mode, profile protocol.Profile) *statefile.State {
	t.Helper()
	s, err := statefile.New(mode, []byte("link secret"), profile)
	if err != nil {
		t.Fatalf("statefile.New: %v", err)
	}
	return s
}

func TestLinkPersistsAcrossRestart(t *testing.T) {
	for _, mode := range []auth.Mode{auth.ModeDirect, auth.ModeChain} {
		dir := t.TempDir()
		txCfg := LinkConfig{StateFile: filepath.Join(dir, "tx.dat"), LoggerFactory: logging.NewDefaultLoggerFactory()}
		rxCfg := LinkConfig{StateFile: filepath.Join(dir, "rx.dat")}

		tx, err := NewLink(txCfg, newState(t, mode, protocol.RadioProfile))
		if err != nil {
			t.Fatalf("NewLink: %v", err)
		}
		rx, err := NewLink(rxCfg, newState(t, mode, protocol.RadioProfile))
		if err != nil {
			t.Fatalf("NewLink: %v", err)
		}

		var last []byte
		for i := 0; i < 10; i++ {
			if last, err = tx.Encode([]byte("on")); err != nil {
				t.Fatalf("Encode: %v", err)
			}
		}
		if _, err := rx.Decode(last); err != nil {
			t.Fatalf("Decode: %v", err)
		}

		// Restart both ends from disk.
		tx, err = OpenLink(txCfg)
		if err != nil {
			t.Fatalf("OpenLink: %v", err)
		}
		rx, err = OpenLink(rxCfg)
		if err != nil {
			t.Fatalf("OpenLink: %v", err)
		}
		if _, err := rx.Decode(last); !errors.Is(err, auth.ErrAuthenticationFailed) {
			t.Fatalf("%v: replay accepted after restart: %v", mode, err)
		}
		p, err := tx.Encode([]byte("off"))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := rx.Decode(p)
		if err != nil {
			t.Fatalf("%v: Decode after restart: %v", mode, err)
		}
		if !bytes.HasPrefix(got, []byte("off")) {
			t.Fatalf("payload = %q", got)
		}
	}
}

func TestLinkMemoryOnly(t *testing.T) {
	tx, err := NewLink(LinkConfig{}, newState(t, auth.ModeDirect, protocol.NetworkProfile))
	if err != nil {
		t.Fatalf("NewLink: %v", err)
	}
	s := newState(t, auth.ModeDirect, protocol.NetworkProfile)
	rx, _ := NewLink(LinkConfig{}, s)
	p, err := tx.Encode([]byte("hello"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := rx.Decode(p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(s.Snapshot, rx.Authenticator().Save()) {
		t.Fatalf("in-memory state not updated")
	}
	if tx.Lower() != 1 || rx.Lower() != 1 {
		t.Fatalf("lower = %d/%d", tx.Lower(), rx.Lower())
	}
}

func TestLinkEncodeErrorKeepsPosition(t *testing.T) {
	tx, _ := NewLink(LinkConfig{}, newState(t, auth.ModeChain, protocol.RadioProfile))
	if _, err := tx.Encode([]byte("too long")); !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if tx.Lower() != 0 {
		t.Fatalf("failed encode consumed an index")
	}
}

func TestOpenLinkMissing(t *testing.T) {
	if _, err := OpenLink(LinkConfig{StateFile: filepath.Join(t.TempDir(), "none")}); err == nil {
		t.Fatalf("expected error for missing state file")
	}
}

func TestLinkDecodeKeepsPacketWhenSaveFails(t *testing.T) {
	for _, mode := range []auth.Mode{auth.ModeDirect, auth.ModeChain} {
		dir := filepath.Join(t.TempDir(), "state")
		if err := os.Mkdir(dir, 0700); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
		tx, _ := NewLink(LinkConfig{}, newState(t, mode, protocol.RadioProfile))
		rx, err := NewLink(LinkConfig{StateFile: filepath.Join(dir, "rx.dat")},
			newState(t, mode, protocol.RadioProfile))
		if err != nil {
			t.Fatalf("NewLink: %v", err)
		}
		p, err := tx.Encode([]byte("on"))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		if err := os.RemoveAll(dir); err != nil {
			t.Fatalf("RemoveAll: %v", err)
		}
		if _, err := rx.Decode(p); err == nil {
			t.Fatalf("%v: Decode succeeded without a state directory", mode)
		}
		if rx.Lower() != 0 {
			t.Fatalf("%v: failed save consumed index, lower = %d", mode, rx.Lower())
		}

		if err := os.Mkdir(dir, 0700); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
		got, err := rx.Decode(p)
		if err != nil {
			t.Fatalf("%v: retry: %v", mode, err)
		}
		if !bytes.HasPrefix(got, []byte("on")) || rx.Lower() != 1 {
			t.Fatalf("%v: retry gave %q at %d", mode, got, rx.Lower())
		}
	}
}
