package transport

import (
	"context"
	"net"
)

// Port carries one NVMe-MI request message to an endpoint and returns the
// complete response message. Exchange must return the full response or fail;
// it never returns a partial message. Cancellation and deadlines come from
// ctx.
//
// Implemented by StreamPort, the WithIntegrityCheck decorator and sim.Port.
type Port interface {
	// Exchange sends req and waits for the matching response.
	Exchange(ctx context.Context, req []byte) ([]byte, error)

	// Close releases the binding. Further exchanges fail.
	Close() error
}

// MessageSizeLimiter is implemented by ports whose binding imposes a maximum
// NVMe-MI message size.
type MessageSizeLimiter interface {
	MaxMessageSize() int
}

// Handler answers NVMe-MI request messages on the responder side.
// Returning a nil response with a nil error sends nothing.
type Handler interface {
	Handle(ctx context.Context, req []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req []byte) ([]byte, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

// ExchangeServer serves a Handler to remote ports.
// Implemented by Server.
type ExchangeServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop gracefully stops the server.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Port               = (*StreamPort)(nil)
	_ MessageSizeLimiter = (*StreamPort)(nil)
	_ ExchangeServer     = (*Server)(nil)
	_ FrameReadWriter    = (*Framer)(nil)
	_ Handler            = HandlerFunc(nil)
)
