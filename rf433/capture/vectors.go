package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/protocol"
)

// FarJump is how far the direct-schedule vectors move the sender before a
// resync record.
const FarJump = uint64(1) << 60

type generator struct {
	w       *Writer
	a       *auth.Authenticator
	profile protocol.Profile
}

func (g *generator) payload(format string, args ...interface{}) []byte {
	p := []byte(fmt.Sprintf(format, args...))
	if g.profile.Fixed() && len(p) > g.profile.PayloadSize {
		p = p[:g.profile.PayloadSize]
	}
	return p
}

func (g *generator) encode(payload []byte) ([]byte, error) {
	return g.a.Encode(payload)
}

func (g *generator) emit(data []byte, flags Flags) error {
	return g.w.Write(Record{Flags: flags, Data: data})
}

// skip consumes n indices without emitting anything.
func (g *generator) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := g.encode([]byte{'z'}); err != nil {
			return err
		}
	}
	return nil
}

// jump moves the sender far outside the receiver's window.
func (g *generator) jump() error {
	if g.a.Mode() != auth.ModeDirect {
		return g.skip(3*auth.WindowSize + 17)
	}
	snap := g.a.Save()
	lower := binary.LittleEndian.Uint64(snap)
	binary.LittleEndian.PutUint64(snap, lower+FarJump)
	return g.a.Restore(snap)
}

// GenerateVectors writes a conformance stream for a sender keyed with secret.
// A fresh receiver with the same mode, secret and profile must agree with
// every record's FlagAuthentic bit when the stream is replayed by Verify.
func GenerateVectors(w *Writer, mode auth.Mode, secret []byte, profile protocol.Profile) error {
	a, err := auth.NewWithMode(mode, secret, profile)
	if err != nil {
		return err
	}
	g := &generator{w: w, a: a, profile: profile}

	// Authentic messages.
	for i := 0; i < 300; i++ {
		data, err := g.encode(g.payload("message %d", i))
		if err != nil {
			return err
		}
		if err := g.emit(data, FlagAuthentic); err != nil {
			return err
		}
	}

	// Corrupt message.
	hello := g.payload("hello")
	data, err := g.encode(hello)
	if err != nil {
		return err
	}
	data[0] = 'H'
	if err := g.emit(data, 0); err != nil {
		return err
	}

	// Counter one window ahead.
	snap := a.Save()
	if err := g.skip(auth.WindowSize); err != nil {
		return err
	}
	if data, err = g.encode(hello); err != nil {
		return err
	}
	if err := g.emit(data, 0); err != nil {
		return err
	}
	if err := a.Restore(snap); err != nil {
		return err
	}

	// Good counter.
	if data, err = g.encode(hello); err != nil {
		return err
	}
	if err := g.emit(data, FlagAuthentic); err != nil {
		return err
	}

	// Counter jumps forward by the widest step the window tolerates.
	for i := 0; i < 5; i++ {
		if err := g.skip(auth.WindowSize - 1); err != nil {
			return err
		}
		if data, err = g.encode(g.payload("jump %d", i)); err != nil {
			return err
		}
		if err := g.emit(data, FlagAuthentic); err != nil {
			return err
		}
	}

	// Replays.
	if err := g.emit(data, 0); err != nil {
		return err
	}
	if data, err = g.encode(g.payload("replay")); err != nil {
		return err
	}
	if err := g.emit(data, FlagAuthentic); err != nil {
		return err
	}
	if err := g.emit(data, 0); err != nil {
		return err
	}

	// The distant future, reached through a resync.
	if err := g.jump(); err != nil {
		return err
	}
	if err := g.emit(a.Save(), FlagResync); err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		if data, err = g.encode(g.payload("future %d", i)); err != nil {
			return err
		}
		if err := g.emit(data, FlagAuthentic); err != nil {
			return err
		}
	}

	// Unreachable without a resync, accepted after one.
	if err := g.jump(); err != nil {
		return err
	}
	resync := a.Save()
	if data, err = g.encode(g.payload("final")); err != nil {
		return err
	}
	if err := g.emit(data, 0); err != nil {
		return err
	}
	if err := g.emit(resync, FlagResync); err != nil {
		return err
	}
	if err := g.emit(data, FlagAuthentic); err != nil {
		return err
	}
	return w.Flush()
}

// Result summarizes a Verify run.
type Result struct {
	Accepted int
	Rejected int
	Resyncs  int
	// Mismatches lists the record numbers where the receiver disagreed
	// with the recorded expectation.
	Mismatches []int
}

func (r Result) OK() bool { return len(r.Mismatches) == 0 }

// Verify replays every record of r against the receiver a.
func Verify(r *Reader, a *auth.Authenticator) (Result, error) {
	var res Result
	for n := 0; ; n++ {
		rec, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, err
		}
		if rec.Flags&FlagResync != 0 {
			if err := a.Restore(rec.Data); err != nil {
				return res, fmt.Errorf("capture: record %d: %w", n, err)
			}
			res.Resyncs++
			continue
		}
		_, err = a.Decode(rec.Data)
		accepted := err == nil
		if accepted {
			res.Accepted++
		} else {
			res.Rejected++
		}
		if accepted != (rec.Flags&FlagAuthentic != 0) {
			res.Mismatches = append(res.Mismatches, n)
		}
	}
}
