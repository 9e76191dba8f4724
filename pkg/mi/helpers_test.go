package mi

import (
	"context"
	"sync"
	"testing"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport/mocks"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures protocol events.
type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *recordingLogger) Log(e log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingLogger) chunks() []log.ChunkEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.ChunkEvent
	for _, e := range l.events {
		if e.Chunk != nil {
			out = append(out, *e.Chunk)
		}
	}
	return out
}

func (l *recordingLogger) states() []log.StateChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.StateChangeEvent
	for _, e := range l.events {
		if e.StateChange != nil {
			out = append(out, *e.StateChange)
		}
	}
	return out
}

// openMock opens an endpoint over a mock port with the given message size.
func openMock(t *testing.T, maxMsg int) (*mocks.MockPort, *Endpoint, *recordingLogger) {
	t.Helper()
	rec := &recordingLogger{}
	root := NewRoot(RootConfig{ProtocolLogger: rec})
	port := mocks.NewMockPort(t)
	ep, err := root.Open(port, EndpointConfig{Address: "mock", MaxMessageSize: maxMsg})
	require.NoError(t, err)
	return port, ep, rec
}

// adminExchange is one recorded Admin request.
type adminExchange struct {
	Req  *wire.AdminRequest
	Data []byte
}

// adminResponder answers Admin requests with respond, recording each request.
// respond returns the response; its header is filled in.
func adminResponder(t *testing.T, seen *[]adminExchange, respond func(i int, req *wire.AdminRequest, data []byte) *wire.AdminResponse) func(context.Context, []byte) ([]byte, error) {
	return func(_ context.Context, msg []byte) ([]byte, error) {
		req, data, err := wire.DecodeAdminRequest(msg)
		require.NoError(t, err)
		*seen = append(*seen, adminExchange{Req: req, Data: append([]byte(nil), data...)})
		resp := respond(len(*seen)-1, req, data)
		resp.Header = req.Header.Response()
		return resp.Encode(), nil
	}
}

// windowOf serves the DOFF/DLEN window of payload.
func windowOf(payload []byte, req *wire.AdminRequest) []byte {
	off := 0
	if req.Flags&wire.AdminFlagDOFFValid != 0 {
		off = int(req.DOFF)
	}
	end := min(off+int(req.DLEN), len(payload))
	if off >= end {
		return nil
	}
	return payload[off:end]
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/256)
	}
	return b
}
