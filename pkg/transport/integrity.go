package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// ErrRequestIntegrity indicates a request that is too short to carry an
// integrity check or whose check value does not match.
var ErrRequestIntegrity = errors.New("request integrity check failed")

// IntegrityPort appends a message integrity check to every request and
// verifies and strips it from every response.
type IntegrityPort struct {
	inner Port
}

// WithIntegrityCheck wraps p with message integrity checking.
func WithIntegrityCheck(p Port) *IntegrityPort {
	return &IntegrityPort{inner: p}
}

// Exchange implements Port. A response whose check value does not match
// fails with an error wrapping wire.ErrMalformedResponse.
func (p *IntegrityPort) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	msg := wire.AppendMIC(append(make([]byte, 0, len(req)+wire.MICSize), req...))
	resp, err := p.inner.Exchange(ctx, msg)
	if err != nil {
		return nil, err
	}
	body, err := wire.VerifyMIC(resp)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	return body, nil
}

// Close closes the wrapped port.
func (p *IntegrityPort) Close() error {
	return p.inner.Close()
}

// MaxMessageSize reports the wrapped port's limit less the check trailer.
func (p *IntegrityPort) MaxMessageSize() int {
	l, ok := p.inner.(MessageSizeLimiter)
	if !ok || l.MaxMessageSize() <= 0 {
		return 0
	}
	return l.MaxMessageSize() - wire.MICSize
}

// IntegrityHandler is the responder side of WithIntegrityCheck: requests
// failing the check are dropped with an error wrapping ErrRequestIntegrity
// and responses gain a check trailer.
func IntegrityHandler(h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
		body, err := wire.VerifyMIC(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestIntegrity, err)
		}
		resp, err := h.Handle(ctx, body)
		if err != nil || resp == nil {
			return resp, err
		}
		return wire.AppendMIC(resp), nil
	})
}

// Compile-time interface satisfaction checks.
var (
	_ Port               = (*IntegrityPort)(nil)
	_ MessageSizeLimiter = (*IntegrityPort)(nil)
)
