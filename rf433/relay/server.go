package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/TheusHen/rf433/rf433/protocol"
	"github.com/TheusHen/rf433/rf433/transport/quic"
	"github.com/pion/logging"
)

// Handler receives each relayed packet. It must not retain packet after
// returning unless it copies it.
type Handler func(packet []byte, from net.Addr)

// ServerConfig configures a Server.
type ServerConfig struct {
	// ListenAddr is the UDP address QUIC listens on.
	ListenAddr string

	// Handler is called for each relayed packet.
	// Required.
	Handler Handler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

var ErrNoHandler = errors.New("relay: no handler")

// Server accepts relay connections from gateways.
type Server struct {
	ln      *quic.Listener
	handler Handler
	log     logging.LeveledLogger
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	ln, err := quic.Listen(config.ListenAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{ln: ln, handler: config.Handler}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("relay")
	}
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Close releases the listener. Serve returns once it notices. It is safe
// to call Close more than once and without Serve.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ln.Close()
	})
	return s.closeErr
}

// Serve accepts connections until ctx is done, then closes the listener
// and waits for the stream readers to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.log != nil {
		s.log.Infof("relay listening on %s", s.ln.Addr())
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	defer s.wg.Wait()

	for {
		conn, err := s.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn quic.Connection) {
	defer s.wg.Done()
	defer conn.CloseWithError(0, "")
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serveStream(stream, conn.RemoteAddr())
	}
}

func (s *Server) serveStream(stream quic.Stream, from net.Addr) {
	defer s.wg.Done()
	defer stream.Close()
	for {
		f, err := protocol.ReadFrame(stream)
		if err != nil {
			if err != io.EOF && s.log != nil {
				s.log.Debugf("stream from %v: %v", from, err)
			}
			return
		}
		switch f.Type {
		case protocol.MessageTypePacket:
			s.handler(f.Payload, from)
		case protocol.MessageTypePing:
		case protocol.MessageTypeClose:
			return
		default:
			if s.log != nil {
				s.log.Warnf("unexpected %s frame from %v", f.Type, from)
			}
			return
		}
	}
}
