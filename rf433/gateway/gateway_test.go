package gateway

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/TheusHen/rf433/rf433/auth"
	"github.com/TheusHen/rf433/rf433/capture"
	"github.com/TheusHen/rf433/rf433/fec"
	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/pion/transport/v3/test"
)

type bridgeAddr int

func (a bridgeAddr) Network() string { return "bridge" }
func (a bridgeAddr) String() string  { return "bridge:" + string(rune('0'+int(a))) }

// bridgePacketConn exposes one end of a test.Bridge as a PacketConn.
type bridgePacketConn struct {
	net.Conn
	id int
}

func (c *bridgePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.Conn.Read(b)
	return n, bridgeAddr(1 - c.id), err
}

func (c *bridgePacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	return c.Conn.Write(b)
}

func (c *bridgePacketConn) LocalAddr() net.Addr { return bridgeAddr(c.id) }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDatagram(t *testing.T) {
	d := EncodeDatagram([]byte{1, 2, 3})
	if !bytes.Equal(d, []byte{'N', 'C', 1, 2, 3}) {
		t.Fatalf("EncodeDatagram = %x", d)
	}
	frame, err := DecodeDatagram(d)
	if err != nil || !bytes.Equal(frame, []byte{1, 2, 3}) {
		t.Fatalf("DecodeDatagram = %x, %v", frame, err)
	}
	for _, bad := range [][]byte{nil, []byte("NC"), []byte("XX123")} {
		if _, err := DecodeDatagram(bad); err != ErrNotDatagram {
			t.Fatalf("DecodeDatagram(%q) = %v", bad, err)
		}
	}
}

func TestReceiverLossyBridge(t *testing.T) {
	br := test.NewBridge()
	tx := &bridgePacketConn{Conn: br.GetConn0(), id: 0}
	rxConn := &bridgePacketConn{Conn: br.GetConn1(), id: 1}

	sender, _ := auth.NewWithMode(auth.ModeChain, []byte("s"), protocol.RadioProfile)
	receiver, _ := auth.NewWithMode(auth.ModeChain, []byte("s"), protocol.RadioProfile)
	codec, err := fec.NewCodec(protocol.RadioProfile.PacketSize(0), 4)
	if err != nil {
		t.Fatalf("fec.NewCodec: %v", err)
	}

	var capBuf bytes.Buffer
	cw, _ := capture.NewWriter(&capBuf, capture.CompressionFast)

	var mu sync.Mutex
	var payloads []string
	r, err := NewReceiver(ReceiverConfig{
		Conn:    rxConn,
		Decoder: receiver,
		FEC:     codec,
		Capture: cw,
		Handler: func(m Message) {
			mu.Lock()
			defer mu.Unlock()
			payloads = append(payloads, string(bytes.TrimRight(m.Payload, "\x00")))
		},
	})
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	frames := make([][]byte, 6)
	for i := range frames {
		p, err := sender.Encode([]byte{'p', byte('0' + i)})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if frames[i], err = codec.Encode(p); err != nil {
			t.Fatalf("fec Encode: %v", err)
		}
	}
	send := func(f []byte) {
		if _, err := tx.WriteTo(EncodeDatagram(f), nil); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
	}

	// p0 twice (radio repeat), p1 lost, then p2 and p3.
	send(frames[0])
	send(frames[0])
	send(frames[1])
	send(frames[2])
	send(frames[3])
	br.Drop(0, 2, 1)
	br.Process()
	waitFor(t, "first batch", func() bool { s := r.Stats(); return s.Accepted+s.Repeats == 4 })

	// p4 and p5 swapped in flight: p4 arrives stale.
	send(frames[4])
	send(frames[5])
	if err := br.Reorder(0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	br.Process()
	waitFor(t, "reordered batch", func() bool { return r.Stats().Rejected == 1 })

	_, _ = tx.WriteTo([]byte("not a datagram"), nil)
	br.Process()
	waitFor(t, "malformed datagram", func() bool { return r.Stats().Malformed == 1 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := r.Stats()
	if s.Accepted != 4 || s.Repeats != 1 || s.Rejected != 1 || s.Received != 7 {
		t.Fatalf("unexpected stats %+v", s)
	}
	mu.Lock()
	got := payloads
	mu.Unlock()
	want := []string{"p0", "p2", "p3", "p5"}
	if len(got) != len(want) {
		t.Fatalf("payloads = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payloads = %q, want %q", got, want)
		}
	}

	_ = cw.Close()
	recs, err := capture.NewReader(&capBuf).ReadAll()
	if err != nil {
		t.Fatalf("capture ReadAll: %v", err)
	}
	if len(recs) != 6 {
		t.Fatalf("captured %d records", len(recs))
	}
	authentic := 0
	for _, rec := range recs {
		if rec.Flags&capture.FlagAuthentic != 0 {
			authentic++
		}
		if len(rec.Data) != protocol.RadioProfile.PacketSize(0) {
			t.Fatalf("capture holds parity bytes")
		}
	}
	if authentic != 4 {
		t.Fatalf("captured %d authentic records", authentic)
	}
}

func TestReceiverWithoutDecoder(t *testing.T) {
	var got []Message
	r, err := NewReceiver(ReceiverConfig{
		Profile: protocol.RadioProfile,
		Handler: func(m Message) { got = append(got, m) },
	})
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	sender, _ := auth.NewWithMode(auth.ModeDirect, []byte("s"), protocol.RadioProfile)
	p, _ := sender.Encode([]byte("on"))
	r.HandleFrame(p, nil)
	r.HandleFrame(p, nil)
	r.HandleFrame(p[:5], nil)
	if len(got) != 2 || got[0].Payload != nil {
		t.Fatalf("unexpected messages %+v", got)
	}
	if s := r.Stats(); s.Malformed != 1 || s.Received != 3 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if err := r.Run(context.Background()); err != ErrNoConn {
		t.Fatalf("expected ErrNoConn, got %v", err)
	}
	if _, err := NewReceiver(ReceiverConfig{}); err != ErrNoProfile {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
}

type recorder struct {
	mu    sync.Mutex
	times []time.Time
	data  [][]byte
}

func (r *recorder) Transmit(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, time.Now())
	r.data = append(r.data, append([]byte(nil), frame...))
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func TestDispatcherSpacing(t *testing.T) {
	rec := &recorder{}
	var sentMu sync.Mutex
	var sent [][]byte
	const interval = 40 * time.Millisecond
	d, err := NewDispatcher(DispatcherConfig{
		Transmitter: rec,
		Interval:    interval,
		Repeats:     2,
		OnSent: func(f []byte) {
			sentMu.Lock()
			sent = append(sent, f)
			sentMu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	for _, f := range []string{"a", "b", "c"} {
		if err := d.Submit([]byte(f)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	waitFor(t, "transmissions", func() bool { return rec.count() == 6 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, want := range []string{"a", "a", "b", "b", "c", "c"} {
		if string(rec.data[i]) != want {
			t.Fatalf("transmission %d = %q, want %q", i, rec.data[i], want)
		}
	}
	for _, i := range []int{2, 4} {
		if gap := rec.times[i].Sub(rec.times[i-1]); gap < interval-5*time.Millisecond {
			t.Fatalf("frames %d and %d only %v apart", i-1, i, gap)
		}
	}
	if d.Sent() != 3 || len(sent) != 3 {
		t.Fatalf("Sent = %d, OnSent called %d times", d.Sent(), len(sent))
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d, _ := NewDispatcher(DispatcherConfig{Transmitter: TransmitterFunc(func([]byte) error { return nil }), QueueSize: 1})
	if err := d.Submit([]byte("a")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Submit([]byte("b")); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if d.Pending() != 1 {
		t.Fatalf("Pending = %d", d.Pending())
	}
	if _, err := NewDispatcher(DispatcherConfig{}); err != ErrNoTransmitter {
		t.Fatalf("expected ErrNoTransmitter, got %v", err)
	}
}

func TestUDPLoopback(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	sender, _ := auth.NewWithMode(auth.ModeDirect, []byte("s"), protocol.NetworkProfile)
	receiver, _ := auth.NewWithMode(auth.ModeDirect, []byte("s"), protocol.NetworkProfile)

	got := make(chan string, 1)
	r, _ := NewReceiver(ReceiverConfig{
		Conn:    conn,
		Decoder: receiver,
		Handler: func(m Message) { got <- string(m.Payload) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	utx, err := DialUDPTransmitter(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialUDPTransmitter: %v", err)
	}
	defer utx.Close()
	p, _ := sender.Encode([]byte("lights on"))
	if err := utx.Transmit(p); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	select {
	case s := <-got:
		if s != "lights on" {
			t.Fatalf("payload = %q", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out")
	}
}

func TestReceiverRepairsFrame(t *testing.T) {
	sender, _ := auth.NewWithMode(auth.ModeDirect, []byte("s"), protocol.RadioProfile)
	receiver, _ := auth.NewWithMode(auth.ModeDirect, []byte("s"), protocol.RadioProfile)
	codec, _ := fec.NewCodec(protocol.RadioProfile.PacketSize(0), 2)

	var got []Message
	r, err := NewReceiver(ReceiverConfig{
		Decoder: receiver,
		FEC:     codec,
		Handler: func(m Message) { got = append(got, m) },
	})
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	p0, _ := sender.Encode([]byte("on"))
	f0, _ := codec.Encode(p0)
	f0[1] ^= 0x40
	r.HandleFrame(f0, nil)

	p1, _ := sender.Encode([]byte("off"))
	f1, _ := codec.Encode(p1)
	r.HandleFrame(f1, nil)

	s := r.Stats()
	if s.Corrected != 1 || s.Accepted != 2 || s.Rejected != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if len(got) != 2 || !bytes.Equal(got[0].Packet, p0) || !bytes.Equal(got[1].Packet, p1) {
		t.Fatalf("repaired packet not delivered")
	}
}
