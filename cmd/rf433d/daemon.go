package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/TheusHen/rf433/rf433"
	"github.com/TheusHen/rf433/rf433/capture"
	"github.com/TheusHen/rf433/rf433/config"
	"github.com/TheusHen/rf433/rf433/discovery"
	"github.com/TheusHen/rf433/rf433/discovery/mdns"
	"github.com/TheusHen/rf433/rf433/fec"
	"github.com/TheusHen/rf433/rf433/gateway"
	"github.com/TheusHen/rf433/rf433/relay"
	"github.com/TheusHen/rf433/rf433/statefile"
	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"
)

const (
	rediscoverInterval = time.Minute
	forwardTimeout     = 5 * time.Second
)

type daemon struct {
	settings *config.Settings
	lf       logging.LoggerFactory
	log      logging.LeveledLogger

	link       *rf433.Link
	conn       net.PacketConn
	receiver   *gateway.Receiver
	dispatcher *gateway.Dispatcher
	relay      *relay.Server
	mdns       *mdns.Resolver

	tx          *gateway.UDPTransmitter
	capture     *capture.Writer
	captureFile *os.File

	mu     sync.Mutex
	fanout relay.Fanout
	known  map[string]bool
}

func newDaemon(s *config.Settings) (*daemon, error) {
	d := &daemon{
		settings: s,
		lf:       s.LoggerFactory(),
		known:    map[string]bool{},
	}
	d.log = d.lf.NewLogger("rf433d")
	if err := d.setup(); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

func (d *daemon) setup() error {
	s := d.settings

	if !statefile.Exists(s.StateFile) {
		return fmt.Errorf("no state file %v, create one with rf433-keygen",
			s.StateFile)
	}
	link, err := rf433.OpenLink(rf433.LinkConfig{
		StateFile:     s.StateFile,
		LoggerFactory: d.lf,
	})
	if err != nil {
		return fmt.Errorf("state file: %w", err)
	}
	d.link = link
	profile := link.Profile()
	if link.Authenticator().Mode() != s.AuthMode() || profile.Name != s.Profile {
		d.log.Warnf("state file uses %v/%v, ignoring configured %v/%v",
			link.Authenticator().Mode(), profile.Name, s.Mode, s.Profile)
	}

	var codec *fec.Codec
	if s.FECParity > 0 {
		if !profile.Fixed() {
			return fmt.Errorf("fecparity requires a fixed size profile, "+
				"state file uses %v", profile.Name)
		}
		codec, err = fec.NewCodec(profile.PacketSize(0), s.FECParity)
		if err != nil {
			return err
		}
	}

	if s.Capture != "" {
		d.captureFile, err = os.OpenFile(s.Capture,
			os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return err
		}
		d.capture, err = capture.NewWriter(d.captureFile,
			capture.CompressionDefault)
		if err != nil {
			return err
		}
	}

	var tx gateway.Transmitter
	if s.Transmit != "" {
		d.tx, err = gateway.DialUDPTransmitter(s.Transmit)
		if err != nil {
			return err
		}
		tx = d.tx
	} else {
		d.log.Warnf("no radio bridge configured, frames are only relayed")
		tx = gateway.TransmitterFunc(func([]byte) error { return nil })
	}

	d.dispatcher, err = gateway.NewDispatcher(gateway.DispatcherConfig{
		Transmitter:   tx,
		Interval:      s.SendInterval,
		Repeats:       s.Repeats,
		OnSent:        d.forward,
		LoggerFactory: d.lf,
	})
	if err != nil {
		return err
	}

	d.conn, err = net.ListenPacket("udp", s.Listen)
	if err != nil {
		return err
	}
	rc := gateway.ReceiverConfig{
		Conn:          d.conn,
		Profile:       profile,
		FEC:           codec,
		Capture:       d.capture,
		Handler:       d.handle,
		LoggerFactory: d.lf,
	}
	if s.Verify {
		rc.Decoder = link
	}
	d.receiver, err = gateway.NewReceiver(rc)
	if err != nil {
		return err
	}

	for _, addr := range s.Repeaters {
		d.addRepeater(addr)
	}

	if s.RelayListen != "" {
		d.relay, err = relay.NewServer(relay.ServerConfig{
			ListenAddr: s.RelayListen,
			Handler: func(frame []byte, from net.Addr) {
				d.receiver.HandleFrame(append([]byte(nil), frame...), from)
			},
			LoggerFactory: d.lf,
		})
		if err != nil {
			return err
		}
	}

	if s.MDNS {
		d.mdns, err = mdns.New(mdns.Config{LoggerFactory: d.lf})
		if err != nil {
			return err
		}
		if err := d.announce(d.conn.LocalAddr()); err != nil {
			return err
		}
	}

	return nil
}

func (d *daemon) announce(gatewayAddr net.Addr) error {
	info := discovery.AddrInfo{
		Name: d.settings.Name,
		Capabilities: map[string]string{
			discovery.CapRole:    discovery.RoleGateway,
			discovery.CapProfile: d.link.Profile().Name,
			discovery.CapMode:    d.link.Authenticator().Mode().String(),
		},
	}
	addr := gatewayAddr
	if d.relay != nil {
		info.Capabilities[discovery.CapRole] = discovery.RoleRepeater
		addr = d.relay.Addr()
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return err
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return err
	}
	info.Port = uint16(p)
	return d.mdns.Announce(info)
}

// handle queues every frame that passed the receiver for transmission.
func (d *daemon) handle(m gateway.Message) {
	if err := d.dispatcher.Submit(m.Frame); err != nil {
		d.log.Warnf("frame from %v: %v", m.From, err)
	}
}

func (d *daemon) addRepeater(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.known[addr] {
		return
	}
	d.known[addr] = true
	d.fanout = append(d.fanout, relay.NewForwarder(relay.ForwarderConfig{
		Addr:          addr,
		LoggerFactory: d.lf,
	}))
	d.log.Infof("forwarding to repeater %v", addr)
}

// forward relays a transmitted frame to every known repeater.
func (d *daemon) forward(frame []byte) {
	d.mu.Lock()
	fanout := d.fanout
	d.mu.Unlock()
	if len(fanout) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()
	if err := fanout.Send(ctx, frame); err != nil {
		d.log.Warnf("forward: %v", err)
	}
}

// discover adds repeaters announced over mdns until ctx is done.
func (d *daemon) discover(ctx context.Context) error {
	ticker := time.NewTicker(rediscoverInterval)
	defer ticker.Stop()
	for {
		infos, err := discovery.Repeaters(d.mdns, d.link.Profile().Name)
		if err != nil {
			d.log.Warnf("discovery: %v", err)
		}
		for _, info := range infos {
			if info.Name == d.settings.Name {
				continue
			}
			d.addRepeater(info.AddrPort().String())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *daemon) run(ctx context.Context) error {
	d.log.Infof("rf433d %v, %v link at position %v",
		rf433.Version, d.link.Authenticator().Mode(), d.link.Lower())

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return d.receiver.Run(ctx) })
	eg.Go(func() error { return d.dispatcher.Run(ctx) })
	if d.relay != nil {
		eg.Go(func() error { return d.relay.Serve(ctx) })
	}
	if d.mdns != nil {
		eg.Go(func() error { return d.discover(ctx) })
	}
	err := eg.Wait()

	st := d.receiver.Stats()
	d.log.Infof("received %v accepted %v rejected %v repeats %v "+
		"malformed %v corrected %v sent %v", st.Received, st.Accepted,
		st.Rejected, st.Repeats, st.Malformed, st.Corrected,
		d.dispatcher.Sent())
	d.close()
	return err
}

func (d *daemon) close() {
	d.mu.Lock()
	fanout := d.fanout
	d.fanout = nil
	d.mu.Unlock()
	_ = fanout.Close()

	if d.relay != nil {
		_ = d.relay.Close()
	}
	if d.mdns != nil {
		_ = d.mdns.Close()
	}
	if d.tx != nil {
		_ = d.tx.Close()
	}
	if d.capture != nil {
		if err := d.capture.Close(); err != nil {
			d.log.Errorf("capture: %v", err)
		}
	}
	if d.captureFile != nil {
		_ = d.captureFile.Close()
	}
	if d.conn != nil {
		_ = d.conn.Close()
	}
}

var _ gateway.Decoder = (*rf433.Link)(nil)
