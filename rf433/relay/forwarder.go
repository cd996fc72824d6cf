package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/transport/quic"
	"github.com/pion/logging"
)

var ErrClosed = errors.New("relay: closed")

// DialFunc opens a QUIC connection.
type DialFunc func(ctx context.Context, addr string) (quic.Connection, error)

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// Addr is the repeater address (host:port).
	Addr string

	// Dial replaces quic.Dial.
	Dial DialFunc

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Forwarder sends packets to one repeater over a single stream, dialing
// lazily and redialing after a failure.
type Forwarder struct {
	addr string
	dial DialFunc
	log  logging.LeveledLogger

	mu     sync.Mutex
	conn   quic.Connection
	stream quic.Stream
	closed bool
	sent   uint64
}

func NewForwarder(config ForwarderConfig) *Forwarder {
	f := &Forwarder{addr: config.Addr, dial: config.Dial}
	if f.dial == nil {
		f.dial = quic.Dial
	}
	if config.LoggerFactory != nil {
		f.log = config.LoggerFactory.NewLogger("relay")
	}
	return f
}

func (f *Forwarder) Addr() string { return f.addr }

// Sent returns the number of packets written.
func (f *Forwarder) Sent() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func (f *Forwarder) connect(ctx context.Context) error {
	if f.stream != nil {
		return nil
	}
	conn, err := f.dial(ctx, f.addr)
	if err != nil {
		return err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return err
	}
	f.conn, f.stream = conn, stream
	if f.log != nil {
		f.log.Infof("connected to repeater %s", f.addr)
	}
	return nil
}

func (f *Forwarder) reset() {
	if f.conn != nil {
		_ = f.conn.CloseWithError(0, "")
	}
	f.conn, f.stream = nil, nil
}

// Send forwards one packet.
func (f *Forwarder) Send(ctx context.Context, packet []byte) error {
	return f.write(ctx, protocol.Frame{Type: protocol.MessageTypePacket, Payload: packet})
}

// Ping checks the stream without sending a packet.
func (f *Forwarder) Ping(ctx context.Context) error {
	return f.write(ctx, protocol.Frame{Type: protocol.MessageTypePing})
}

func (f *Forwarder) write(ctx context.Context, frame protocol.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := f.connect(ctx); err != nil {
		if f.log != nil {
			f.log.Warnf("dial %s: %v", f.addr, err)
		}
		return err
	}
	if err := protocol.WriteFrame(f.stream, frame); err != nil {
		if f.log != nil {
			f.log.Warnf("write to %s: %v", f.addr, err)
		}
		f.reset()
		return err
	}
	if frame.Type == protocol.MessageTypePacket {
		f.sent++
		if f.log != nil {
			f.log.Debugf("forwarded %d bytes to %s", len(frame.Payload), f.addr)
		}
	}
	return nil
}

// Close tells the repeater the stream is done and closes the connection.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.stream != nil {
		_ = protocol.WriteFrame(f.stream, protocol.Frame{Type: protocol.MessageTypeClose})
		_ = f.stream.Close()
	}
	f.reset()
	return nil
}

// Fanout forwards packets to several repeaters.
type Fanout []*Forwarder

// Send forwards packet to every repeater and returns the first error.
func (fo Fanout) Send(ctx context.Context, packet []byte) error {
	var first error
	for _, f := range fo {
		if err := f.Send(ctx, packet); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (fo Fanout) Close() error {
	for _, f := range fo {
		_ = f.Close()
	}
	return nil
}
