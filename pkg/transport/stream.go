package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
)

// PortState is the connection state of a StreamPort.
type PortState uint8

const (
	// StateDisconnected indicates no connection; the next exchange dials.
	StateDisconnected PortState = iota

	// StateConnecting indicates a dial is in progress.
	StateConnecting

	// StateConnected indicates an established connection.
	StateConnected

	// StateClosed indicates the port has been closed.
	StateClosed
)

// String returns the state name.
func (s PortState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Port errors.
var (
	// ErrPortClosed is returned by exchanges on a closed port.
	ErrPortClosed = errors.New("port closed")

	// ErrNoAddress indicates a StreamConfig without an address.
	ErrNoAddress = errors.New("no address configured")
)

// Stream port defaults.
const (
	DefaultExchangeTimeout = 5 * time.Second
	DefaultDialTimeout     = 3 * time.Second
	DefaultDialAttempts    = 3
)

// DialFunc dials the carrier connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// StreamConfig configures a StreamPort.
type StreamConfig struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address of the endpoint (e.g. "127.0.0.1:7000").
	Address string

	// Timeout bounds an exchange when ctx carries no earlier deadline.
	Timeout time.Duration

	// DialTimeout bounds a single dial attempt.
	DialTimeout time.Duration

	// DialAttempts is the number of dials tried per exchange before failing.
	DialAttempts int

	// Backoff configures the delay between dial attempts.
	Backoff BackoffConfig

	// MaxMessageSize is the NVMe-MI message limit of the binding, reported
	// through MessageSizeLimiter. Zero reports no limit.
	MaxMessageSize int

	// EndpointID tags protocol capture events.
	EndpointID string

	// Logger for operational logging. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures raw frames (optional).
	ProtocolLogger log.Logger

	// Dial replaces the default net.Dialer (tests).
	Dial DialFunc
}

// DefaultStreamConfig returns a StreamConfig with default timeouts.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Network:      "tcp",
		Timeout:      DefaultExchangeTimeout,
		DialTimeout:  DefaultDialTimeout,
		DialAttempts: DefaultDialAttempts,
	}
}

// StreamPort is a Port over a length-prefixed byte stream.
type StreamPort struct {
	config  StreamConfig
	backoff *Backoff

	// exMu serializes exchanges. mu guards the fields below; it is never
	// held across I/O.
	exMu   sync.Mutex
	mu     sync.Mutex
	conn   net.Conn
	framer *Framer
	state  PortState
}

// NewStreamPort creates a StreamPort. No connection is made until the first
// exchange.
func NewStreamPort(config StreamConfig) (*StreamPort, error) {
	if config.Address == "" {
		return nil, ErrNoAddress
	}
	if config.Network == "" {
		config.Network = "tcp"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultExchangeTimeout
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if config.DialAttempts <= 0 {
		config.DialAttempts = DefaultDialAttempts
	}
	if config.Dial == nil {
		d := &net.Dialer{}
		config.Dial = d.DialContext
	}

	return &StreamPort{
		config:  config,
		backoff: NewBackoffWithConfig(config.Backoff),
	}, nil
}

// debugLog logs a debug message if logging is enabled.
func (p *StreamPort) debugLog(msg string, args ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, append([]any{"address", p.config.Address}, args...)...)
	}
}

// MaxMessageSize returns the configured message limit (0 when unset).
func (p *StreamPort) MaxMessageSize() int {
	return p.config.MaxMessageSize
}

// State returns the current connection state.
func (p *StreamPort) State() PortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Exchange sends req as one frame and reads one response frame.
// A failed exchange drops the connection; the next exchange redials.
func (p *StreamPort) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	p.exMu.Lock()
	defer p.exMu.Unlock()

	conn, framer, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(p.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		p.drop(conn, err)
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		// Unblock pending I/O on cancellation.
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := framer.WriteFrame(req); err != nil {
		p.drop(conn, err)
		return nil, exchangeError(ctx, "write request", err)
	}
	resp, err := framer.ReadFrame()
	if err != nil {
		p.drop(conn, err)
		return nil, exchangeError(ctx, "read response", err)
	}
	return resp, nil
}

// Close closes the port and any open connection. Idempotent.
func (p *StreamPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return nil
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
		p.framer = nil
	}
	p.setStateLocked(StateClosed, "")
	return err
}

// connect returns the live connection, dialing with backoff if needed.
func (p *StreamPort) connect(ctx context.Context) (net.Conn, *Framer, error) {
	p.mu.Lock()
	switch {
	case p.state == StateClosed:
		p.mu.Unlock()
		return nil, nil, ErrPortClosed
	case p.conn != nil:
		conn, framer := p.conn, p.framer
		p.mu.Unlock()
		return conn, framer, nil
	}
	p.setStateLocked(StateConnecting, "")
	p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < p.config.DialAttempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff.Next()
			p.debugLog("redialing", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				p.setState(StateDisconnected, ctx.Err().Error())
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, p.config.DialTimeout)
		conn, err := p.config.Dial(dialCtx, p.config.Network, p.config.Address)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		p.backoff.Reset()
		framer := NewFramer(conn)
		framer.SetLogger(p.config.ProtocolLogger, p.config.EndpointID, p.config.Address)

		p.mu.Lock()
		if p.state == StateClosed {
			p.mu.Unlock()
			conn.Close()
			return nil, nil, ErrPortClosed
		}
		p.conn, p.framer = conn, framer
		p.setStateLocked(StateConnected, "")
		p.mu.Unlock()

		p.debugLog("connected")
		return conn, framer, nil
	}

	p.setState(StateDisconnected, lastErr.Error())
	return nil, nil, fmt.Errorf("dial %s %s: %w", p.config.Network, p.config.Address, lastErr)
}

// drop discards conn after a failed exchange.
func (p *StreamPort) drop(conn net.Conn, cause error) {
	conn.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != conn {
		return
	}
	p.conn = nil
	p.framer = nil
	if p.state != StateClosed {
		p.setStateLocked(StateDisconnected, cause.Error())
	}
	p.debugLog("connection dropped", "error", cause)
}

func (p *StreamPort) setState(state PortState, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed {
		return
	}
	p.setStateLocked(state, reason)
}

func (p *StreamPort) setStateLocked(state PortState, reason string) {
	old := p.state
	if old == state {
		return
	}
	p.state = state
	if p.config.ProtocolLogger == nil {
		return
	}
	p.config.ProtocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		EndpointID: p.config.EndpointID,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		Address:    p.config.Address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old.String(),
			NewState: state.String(),
			Reason:   reason,
		},
	})
}

// exchangeError prefers the context error when the exchange was cut short
// by cancellation or deadline.
func exchangeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", op, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("%s: %w", op, err)
}
