package gateway

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/capture"
	"github.com/TheusHen/rf433/rf433/fec"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/pion/logging"
)

// MaxDatagramSize bounds a received datagram.
const MaxDatagramSize = 1500

var (
	ErrNoConn    = errors.New("gateway: no connection")
	ErrNoProfile = errors.New("gateway: no profile")
)

// Decoder authenticates packets. *auth.Authenticator and *rf433.Link
// implement it.
type Decoder interface {
	Decode(packet []byte) ([]byte, error)
	Profile() protocol.Profile
}

// Message is a frame that passed the receiver.
type Message struct {
	// Frame is the frame as received, parity included.
	Frame []byte
	// Packet is the authenticated packet without parity.
	Packet []byte
	// Payload is set when a Decoder accepted the packet.
	Payload []byte
	From    net.Addr
}

// Handler is called for each frame that passes the receiver.
type Handler func(Message)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Conn is the socket to read datagrams from.
	// Required for Run.
	Conn net.PacketConn

	// Decoder authenticates packets. If nil, every well-formed frame is
	// passed on unverified.
	Decoder Decoder

	// Profile sizes packets when Decoder is nil.
	Profile protocol.Profile

	// FEC strips and checks parity. Its packet size must match the profile.
	FEC *fec.Codec

	// Capture records every packet with its verdict.
	Capture *capture.Writer

	Handler Handler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Stats counts receiver outcomes.
type Stats struct {
	Received  uint64
	Accepted  uint64
	Rejected  uint64
	Repeats   uint64
	Malformed uint64
	Corrected uint64
}

// noSeq is outside the byte range, so it never matches a sequence byte.
const noSeq = 0x100

type Receiver struct {
	conn    net.PacketConn
	decoder Decoder
	codec   *protocol.Codec
	fec     *fec.Codec
	capture *capture.Writer
	handler Handler
	log     logging.LeveledLogger

	mu      sync.Mutex
	stats   Stats
	lastSeq int
}

func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	profile := config.Profile
	if config.Decoder != nil {
		profile = config.Decoder.Profile()
	}
	codec, err := protocol.NewCodec(profile)
	if err != nil {
		return nil, ErrNoProfile
	}
	r := &Receiver{
		conn:    config.Conn,
		decoder: config.Decoder,
		codec:   codec,
		fec:     config.FEC,
		capture: config.Capture,
		handler: config.Handler,
		lastSeq: noSeq,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("gateway")
	}
	return r, nil
}

// Stats returns a copy of the counters.
func (r *Receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run reads datagrams until ctx is done or the connection fails.
func (r *Receiver) Run(ctx context.Context) error {
	if r.conn == nil {
		return ErrNoConn
	}
	if r.log != nil {
		r.log.Infof("receiving on %s", r.conn.LocalAddr())
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		frame, err := DecodeDatagram(buf[:n])
		if err != nil {
			r.count(func(s *Stats) { s.Received++; s.Malformed++ })
			if r.log != nil {
				r.log.Debugf("ignoring %d byte datagram from %v", n, addr)
			}
			continue
		}
		r.HandleFrame(append([]byte(nil), frame...), addr)
	}
}

func (r *Receiver) count(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

func (r *Receiver) record(packet []byte, flags capture.Flags) {
	if r.capture == nil {
		return
	}
	if err := r.capture.Write(capture.Record{Flags: flags, Data: packet}); err != nil && r.log != nil {
		r.log.Warnf("capture: %v", err)
	}
}

// HandleFrame processes one frame. It is used by Run and by relay servers.
// frame must not be modified afterwards.
func (r *Receiver) HandleFrame(frame []byte, from net.Addr) {
	r.count(func(s *Stats) { s.Received++ })

	packet := frame
	if r.fec != nil {
		fixed, corrected, err := r.fec.Correct(frame)
		switch {
		case err == nil:
			packet = fixed
			if corrected {
				r.count(func(s *Stats) { s.Corrected++ })
				if r.log != nil {
					r.log.Debugf("repaired frame from %v", from)
				}
			}
		case errors.Is(err, fec.ErrUncorrectable):
			// The digest decides.
			packet = frame[:r.fec.PacketSize()]
			if r.log != nil {
				r.log.Debugf("parity mismatch in frame from %v", from)
			}
		default:
			r.count(func(s *Stats) { s.Malformed++ })
			if r.log != nil {
				r.log.Debugf("frame from %v: %v", from, err)
			}
			return
		}
	}

	msg := Message{Frame: frame, Packet: packet, From: from}
	if r.decoder == nil {
		if _, err := r.codec.DecodeWire(packet); err != nil {
			r.count(func(s *Stats) { s.Malformed++ })
			return
		}
		r.record(packet, 0)
		if r.handler != nil {
			r.handler(msg)
		}
		return
	}

	payload, err := r.decoder.Decode(packet)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrAuthenticationFailed):
		r.reject(packet, from)
		return
	default:
		r.count(func(s *Stats) { s.Malformed++ })
		if r.log != nil {
			r.log.Debugf("frame from %v: %v", from, err)
		}
		return
	}

	seq := r.seq(packet)
	r.mu.Lock()
	r.stats.Accepted++
	r.lastSeq = seq
	r.mu.Unlock()
	r.record(packet, capture.FlagAuthentic)
	if r.log != nil {
		r.log.Debugf("accepted %d byte payload from %v, seq %d", len(payload), from, seq)
	}

	msg.Payload = payload
	if r.handler != nil {
		r.handler(msg)
	}
}

func (r *Receiver) seq(packet []byte) int {
	return int(packet[len(packet)-r.codec.Profile().Overhead()])
}

// reject classifies a packet that failed authentication. Radios send each
// burst several times, so a packet repeating the sequence byte of the last
// accepted one is an echo rather than a replay attempt.
func (r *Receiver) reject(packet []byte, from net.Addr) {
	seq := r.seq(packet)
	r.mu.Lock()
	repeat := seq == r.lastSeq
	if repeat {
		r.stats.Repeats++
	} else {
		r.stats.Rejected++
		r.lastSeq = noSeq
	}
	r.mu.Unlock()

	r.record(packet, 0)
	if r.log == nil {
		return
	}
	if repeat {
		r.log.Debugf("repeat of seq %d from %v", seq, from)
	} else {
		r.log.Warnf("rejected packet with seq %d from %v", seq, from)
	}
}
