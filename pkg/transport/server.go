package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nvme-mi/nvme-mi-go/pkg/log"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address to listen on (e.g. ":7000" or "127.0.0.1:0").
	Address string

	// Handler answers request messages. Required.
	Handler Handler

	// MaxMessageSize is the maximum frame payload (default: 64KB).
	MaxMessageSize uint32

	// Logger for operational logging. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures frames and connection state (optional).
	ProtocolLogger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnError is called when an error occurs. conn is nil for listener errors.
	OnError func(conn *ServerConn, err error)
}

// Server accepts stream connections and answers each request frame with
// the Handler's response, one exchange at a time per connection.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new Server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Network == "" {
		config.Network = "tcp"
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxFrameSize
	}

	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)
	s.debugLog("listening", "address", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// debugLog logs a debug message if logging is enabled.
func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

func (s *Server) reportError(conn *ServerConn, err error) {
	s.debugLog("server error", "error", err)
	if s.config.OnError != nil {
		s.config.OnError(conn, err)
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.reportError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	remote := conn.RemoteAddr().String()

	framer := NewFramerWithMaxSize(conn, s.config.MaxMessageSize)
	framer.SetLogger(s.config.ProtocolLogger, connID, remote)

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.logState(sconn, "", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.serve()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(sconn, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(c *ServerConn, oldState, newState string) {
	s.debugLog("connection "+newState, "conn_id", c.connID, "remote", c.remoteAddr.String())
	if s.config.ProtocolLogger == nil {
		return
	}
	s.config.ProtocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		EndpointID: c.connID,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		Address:    c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents one client connection to the server.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) closing() bool {
	select {
	case <-c.closeCh:
		return true
	case <-c.server.ctx.Done():
		return true
	default:
		return false
	}
}

// serve reads request frames and writes the handler's responses until the
// connection closes.
func (c *ServerConn) serve() {
	defer c.Close()

	for !c.closing() {
		req, err := c.framer.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.closing() {
				c.server.reportError(c, err)
			}
			return
		}

		resp, err := c.server.config.Handler.Handle(c.server.ctx, req)
		if err != nil {
			// The request is dropped; the requester times out.
			c.server.reportError(c, fmt.Errorf("handler: %w", err))
			continue
		}
		if resp == nil {
			continue
		}

		if err := c.framer.WriteFrame(resp); err != nil {
			if !c.closing() {
				c.server.reportError(c, err)
			}
			return
		}
	}
}
