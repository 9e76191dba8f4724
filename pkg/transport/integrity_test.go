package transport

import (
	"context"
	"testing"

	"github.com/nvme-mi/nvme-mi-go/pkg/transport/mocks"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIntegrityPortExchange(t *testing.T) {
	inner := mocks.NewMockPort(t)
	req := []byte{0x84, 0x08, 0x00, 0x00, 0x01}

	inner.EXPECT().Exchange(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, msg []byte) ([]byte, error) {
			body, err := wire.VerifyMIC(msg)
			require.NoError(t, err)
			assert.Equal(t, req, body)
			return wire.AppendMIC([]byte{0x84, 0x88, 0x00, 0x00, 0x00, 0, 0, 0}), nil
		})

	p := WithIntegrityCheck(inner)
	resp, err := p.Exchange(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x84, 0x88, 0x00, 0x00, 0x00, 0, 0, 0}, resp)
	assert.Equal(t, []byte{0x84, 0x08, 0x00, 0x00, 0x01}, req, "request not modified")
}

func TestIntegrityPortRejectsBadCheck(t *testing.T) {
	inner := mocks.NewMockPort(t)
	bad := wire.AppendMIC([]byte{0x84, 0x88, 0x00, 0x00, 0x00, 0, 0, 0})
	bad[4] ^= 0x01
	inner.EXPECT().Exchange(mock.Anything, mock.Anything).Return(bad, nil)

	_, err := WithIntegrityCheck(inner).Exchange(context.Background(), []byte{0x84, 0x08, 0, 0})
	assert.ErrorIs(t, err, wire.ErrMalformedResponse)
}

func TestIntegrityPortPassesTransportError(t *testing.T) {
	inner := mocks.NewMockPort(t)
	inner.EXPECT().Exchange(mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)
	inner.EXPECT().Close().Return(nil)

	p := WithIntegrityCheck(inner)
	_, err := p.Exchange(context.Background(), []byte{0x84, 0x08, 0, 0})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, p.Close())
}

func TestIntegrityPortMaxMessageSize(t *testing.T) {
	assert.Equal(t, 0, WithIntegrityCheck(mocks.NewMockPort(t)).MaxMessageSize())

	sp, err := NewStreamPort(StreamConfig{Address: "127.0.0.1:1", MaxMessageSize: 4168})
	require.NoError(t, err)
	assert.Equal(t, 4164, WithIntegrityCheck(sp).MaxMessageSize())
}

func TestIntegrityHandler(t *testing.T) {
	h := IntegrityHandler(echoHandler)

	resp, err := h.Handle(context.Background(), wire.AppendMIC([]byte{0x84, 0x08, 0x00, 0x00}))
	require.NoError(t, err)
	body, err := wire.VerifyMIC(resp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7b, 0x08, 0x00, 0x00}, body)
}

func TestIntegrityHandlerRejectsRequest(t *testing.T) {
	h := IntegrityHandler(HandlerFunc(func(context.Context, []byte) ([]byte, error) {
		t.Fatal("handler called for rejected request")
		return nil, nil
	}))

	tests := []struct {
		name string
		req  []byte
	}{
		{"short", wire.AppendMIC([]byte{0x84, 0x08})},
		{"empty", nil},
		{"bad check", []byte{0x01, 0x02, 0x03, 0x04, 0x05}},
		{"corrupted", func() []byte {
			b := wire.AppendMIC([]byte{0x84, 0x08, 0x00, 0x00})
			b[1] ^= 0x01
			return b
		}()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrRequestIntegrity)
			assert.NotErrorIs(t, err, wire.ErrMalformedResponse)
		})
	}
}
