package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/capture"
	"github.com/TheusHen/rf433/rf433/config"
	"github.com/TheusHen/rf433/rf433/gateway"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/statefile"
)

func TestDaemonForwardsAuthenticFrames(t *testing.T) {
	dir := t.TempDir()
	secret := []byte("s")

	s := config.New()
	s.StateFile = filepath.Join(dir, "state.dat")
	s.Capture = filepath.Join(dir, "capture.lz4")
	s.Listen = "127.0.0.1:0"
	s.SendInterval = time.Millisecond
	s.LogLevel = "disabled"

	st, err := statefile.New(auth.ModeDirect, secret, protocol.RadioProfile)
	if err != nil {
		t.Fatalf("statefile.New: %v", err)
	}
	if err := statefile.Save(s.StateFile, st); err != nil {
		t.Fatalf("statefile.Save: %v", err)
	}

	d, err := newDaemon(s)
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()

	conn, err := net.Dial("udp", d.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sender, _ := auth.NewWithMode(auth.ModeDirect, secret, protocol.RadioProfile)
	p0, _ := sender.Encode([]byte("on"))
	p1, _ := sender.Encode([]byte("off"))
	for _, p := range [][]byte{p0, p0, p1} {
		if _, err := conn.Write(gateway.EncodeDatagram(p)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for d.dispatcher.Sent() < 2 || d.receiver.Stats().Received < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, stats %+v sent %d", d.receiver.Stats(), d.dispatcher.Sent())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	if st := d.receiver.Stats(); st.Accepted != 2 || st.Repeats != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	st, err = statefile.Load(s.StateFile)
	if err != nil {
		t.Fatalf("statefile.Load: %v", err)
	}
	a, err := st.Authenticator()
	if err != nil {
		t.Fatalf("Authenticator: %v", err)
	}
	if a.Lower() != 2 {
		t.Fatalf("persisted position %d, want 2", a.Lower())
	}

	recs, err := readCapture(s.Capture)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(recs) != 3 || !bytes.Equal(recs[0].Data, p0) || recs[1].Flags != 0 {
		t.Fatalf("unexpected capture %v", recs)
	}
}

func TestDaemonNeedsStateFile(t *testing.T) {
	s := config.New()
	s.StateFile = filepath.Join(t.TempDir(), "missing.dat")
	s.Listen = "127.0.0.1:0"
	s.LogLevel = "disabled"
	if _, err := newDaemon(s); err == nil {
		t.Fatalf("expected error without state file")
	}
}

func readCapture(filename string) ([]capture.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return capture.NewReader(f).ReadAll()
}
