package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStreamPort(t *testing.T, srv *Server, mutate func(*StreamConfig)) *StreamPort {
	t.Helper()
	cfg := DefaultStreamConfig()
	cfg.Address = srv.Addr().String()
	cfg.Timeout = 2 * time.Second
	cfg.Backoff = BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewStreamPort(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewStreamPortRequiresAddress(t *testing.T) {
	_, err := NewStreamPort(StreamConfig{})
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestStreamPortExchange(t *testing.T) {
	srv := startServer(t, ServerConfig{Handler: echoHandler})
	p := newTestStreamPort(t, srv, func(c *StreamConfig) { c.MaxMessageSize = 4164 })

	assert.Equal(t, StateDisconnected, p.State())
	assert.Equal(t, 4164, p.MaxMessageSize())

	for i := 0; i < 3; i++ {
		resp, err := p.Exchange(context.Background(), []byte{0x84, byte(i)})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x7b, byte(i)}, resp)
	}
	assert.Equal(t, StateConnected, p.State())
	assert.Equal(t, 1, srv.ConnectionCount())
}

func TestStreamPortRedialsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	srv := startServer(t, ServerConfig{Handler: echoHandler})
	p := newTestStreamPort(t, srv, func(c *StreamConfig) {
		d := &net.Dialer{}
		c.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
			dials.Add(1)
			return d.DialContext(ctx, network, address)
		}
	})

	_, err := p.Exchange(context.Background(), []byte{0x01})
	require.NoError(t, err)

	// Server side hangs up; the first exchange after that fails.
	for _, c := range serverConns(srv) {
		c.Close()
	}
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)

	_, err = p.Exchange(context.Background(), []byte{0x02})
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, p.State())

	resp, err := p.Exchange(context.Background(), []byte{0x03})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfc}, resp)
	assert.Equal(t, int32(2), dials.Load())
}

func TestStreamPortDialRetries(t *testing.T) {
	var dials atomic.Int32
	p, err := NewStreamPort(StreamConfig{
		Address:      "unreachable:1",
		DialAttempts: 3,
		Backoff:      BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond},
		Dial: func(context.Context, string, string) (net.Conn, error) {
			dials.Add(1)
			return nil, errors.New("connection refused")
		},
	})
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(3), dials.Load())
	assert.Equal(t, StateDisconnected, p.State())
}

func TestStreamPortTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	silent := HandlerFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, nil
	})
	srv := startServer(t, ServerConfig{Handler: silent})

	t.Run("config timeout", func(t *testing.T) {
		p := newTestStreamPort(t, srv, func(c *StreamConfig) { c.Timeout = 50 * time.Millisecond })
		_, err := p.Exchange(context.Background(), []byte{0x01})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, StateDisconnected, p.State())
	})

	t.Run("context deadline", func(t *testing.T) {
		p := newTestStreamPort(t, srv, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := p.Exchange(ctx, []byte{0x01})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("context cancel", func(t *testing.T) {
		p := newTestStreamPort(t, srv, nil)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		_, err := p.Exchange(ctx, []byte{0x01})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStreamPortClose(t *testing.T) {
	srv := startServer(t, ServerConfig{Handler: echoHandler})
	logger := &capturingLogger{}
	p := newTestStreamPort(t, srv, func(c *StreamConfig) {
		c.ProtocolLogger = logger
		c.EndpointID = "ep-1"
	})

	_, err := p.Exchange(context.Background(), []byte{0x01})
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, StateClosed, p.State())

	_, err = p.Exchange(context.Background(), []byte{0x01})
	assert.ErrorIs(t, err, ErrPortClosed)

	var states []string
	for _, e := range logger.Events() {
		if e.StateChange != nil {
			assert.Equal(t, "ep-1", e.EndpointID)
			states = append(states, e.StateChange.NewState)
		}
	}
	assert.Equal(t, []string{"CONNECTING", "CONNECTED", "CLOSED"}, states)
}

func serverConns(s *Server) []*ServerConn {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	conns := make([]*ServerConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}
