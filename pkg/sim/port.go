package sim

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
)

// Port is an in-process transport.Port delivering requests to a Handler.
type Port struct {
	handler transport.Handler
	maxMsg  int
	closed  atomic.Bool
}

// NewPort creates a Port in front of h. maxMsg is reported through
// transport.MessageSizeLimiter; zero reports no limit.
func NewPort(h transport.Handler, maxMsg int) *Port {
	return &Port{handler: h, maxMsg: maxMsg}
}

// Exchange implements transport.Port. A request the handler leaves
// unanswered waits for ctx.
func (p *Port) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	if p.closed.Load() {
		return nil, transport.ErrPortClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.maxMsg > 0 && len(req) > p.maxMsg {
		return nil, fmt.Errorf("request size %d exceeds %d", len(req), p.maxMsg)
	}
	resp, err := p.handler.Handle(ctx, append([]byte(nil), req...))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return resp, nil
}

// Close implements transport.Port.
func (p *Port) Close() error {
	p.closed.Store(true)
	return nil
}

// MaxMessageSize implements transport.MessageSizeLimiter.
func (p *Port) MaxMessageSize() int {
	return p.maxMsg
}

var (
	_ transport.Port               = (*Port)(nil)
	_ transport.MessageSizeLimiter = (*Port)(nil)
)
