package gateway

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

const (
	// DefaultSendInterval is the gap a 433MHz transmitter needs between
	// two bursts.
	DefaultSendInterval = 2500 * time.Millisecond

	DefaultQueueSize = 64
)

var (
	ErrQueueFull     = errors.New("gateway: send queue full")
	ErrNoTransmitter = errors.New("gateway: no transmitter")
)

// Transmitter puts a frame on the air.
type Transmitter interface {
	Transmit(frame []byte) error
}

// TransmitterFunc adapts a function to Transmitter.
type TransmitterFunc func(frame []byte) error

func (f TransmitterFunc) Transmit(frame []byte) error { return f(frame) }

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Transmitter sends frames.
	// Required.
	Transmitter Transmitter

	// Interval is the minimum gap between two frames. Zero uses
	// DefaultSendInterval.
	Interval time.Duration

	// QueueSize bounds pending frames. Zero uses DefaultQueueSize.
	QueueSize int

	// Repeats is how many times each frame is transmitted back to back.
	// Zero means once.
	Repeats int

	// OnSent is called after a frame has been transmitted, for example to
	// forward it to repeaters.
	OnSent func(frame []byte)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Dispatcher transmits queued frames in order, at most one per interval.
type Dispatcher struct {
	tx       Transmitter
	interval time.Duration
	repeats  int
	onSent   func([]byte)
	queue    chan []byte
	log      logging.LeveledLogger

	mu   sync.Mutex
	sent uint64
}

func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Transmitter == nil {
		return nil, ErrNoTransmitter
	}
	if config.Interval == 0 {
		config.Interval = DefaultSendInterval
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Repeats <= 0 {
		config.Repeats = 1
	}
	d := &Dispatcher{
		tx:       config.Transmitter,
		interval: config.Interval,
		repeats:  config.Repeats,
		onSent:   config.OnSent,
		queue:    make(chan []byte, config.QueueSize),
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("dispatcher")
	}
	return d, nil
}

// Submit queues frame without blocking.
func (d *Dispatcher) Submit(frame []byte) error {
	select {
	case d.queue <- append([]byte(nil), frame...):
		return nil
	default:
		if d.log != nil {
			d.log.Warnf("dropping %d byte frame, queue full", len(frame))
		}
		return ErrQueueFull
	}
}

// Pending returns the number of queued frames.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Sent returns the number of frames transmitted.
func (d *Dispatcher) Sent() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

// Run transmits frames until ctx is done. Frames still queued are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	var allowAt time.Time
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		var frame []byte
		select {
		case <-ctx.Done():
			return nil
		case frame = <-d.queue:
		}

		if wait := time.Until(allowAt); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
		}

		d.transmit(frame)
		allowAt = time.Now().Add(d.interval)
	}
}

func (d *Dispatcher) transmit(frame []byte) {
	for i := 0; i < d.repeats; i++ {
		if err := d.tx.Transmit(frame); err != nil {
			if d.log != nil {
				d.log.Warnf("transmit failed: %v", err)
			}
			return
		}
	}
	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
	if d.log != nil {
		d.log.Debugf("transmitted %d byte frame", len(frame))
	}
	if d.onSent != nil {
		d.onSent(frame)
	}
}

// UDPTransmitter sends frames as datagrams to a fixed address, for a radio
// bridge or another gateway.
type UDPTransmitter struct {
	conn net.PacketConn
	addr net.Addr
}

func NewUDPTransmitter(conn net.PacketConn, addr net.Addr) *UDPTransmitter {
	return &UDPTransmitter{conn: conn, addr: addr}
}

// DialUDPTransmitter resolves addr and opens an unbound socket for it.
func DialUDPTransmitter(addr string) (*UDPTransmitter, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, err
	}
	return &UDPTransmitter{conn: conn, addr: ua}, nil
}

func (u *UDPTransmitter) Transmit(frame []byte) error {
	_, err := u.conn.WriteTo(EncodeDatagram(frame), u.addr)
	return err
}

func (u *UDPTransmitter) Close() error { return u.conn.Close() }
