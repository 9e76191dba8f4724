package mi

import (
	"context"
	"errors"
	"testing"

	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAdminXferValidation(t *testing.T) {
	_, ep, _ := openMock(t, 276)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	tests := []struct {
		name       string
		reqData    []byte
		respOffset int
		respLen    int
	}{
		{"response above chunk limit", nil, 0, 4100},
		{"response above message size", nil, 0, 260},
		{"request above message size", make([]byte, 212), 0, 0},
		{"unaligned offset", nil, 2, 64},
		{"negative offset", nil, -4, 64},
		{"offset without length", nil, 64, 0},
		{"bidirectional", make([]byte, 4), 0, 4},
		{"request not dword multiple", make([]byte, 6), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var respData []byte
			if tt.respLen > 0 {
				respData = make([]byte, tt.respLen)
			}
			_, n, err := ctrl.AdminXfer(context.Background(), wire.NewAdminRequest(0x06, 0), tt.reqData, tt.respOffset, respData)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Zero(t, n)
		})
	}

	t.Run("nil request", func(t *testing.T) {
		_, _, err := ctrl.AdminXfer(context.Background(), nil, nil, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestAdminXferStampsRequest(t *testing.T) {
	port, ep, _ := openMock(t, 0)
	ctrl, err := ep.Controller(0x0102)
	require.NoError(t, err)

	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(_ int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			return &wire.AdminResponse{CDW0: 0xabcd, Data: pattern(int(req.DLEN))}
		}))

	req := wire.NewAdminRequest(0x06, 0xffff)
	req.CDW10 = 1
	resp := make([]byte, 128)
	r, n, err := ctrl.AdminXfer(context.Background(), req, nil, 256, resp)
	require.NoError(t, err)

	assert.Equal(t, 128, n)
	assert.Equal(t, uint32(0xabcd), r.CDW0)
	assert.Equal(t, pattern(128), resp)

	require.Len(t, seen, 1)
	got := seen[0].Req
	assert.Equal(t, uint16(0x0102), got.CtrlID)
	assert.Equal(t, wire.ClassAdmin, got.Header.Class())
	assert.Equal(t, wire.RoleRequest, got.Header.Role())
	assert.Equal(t, uint32(128), got.DLEN)
	assert.Equal(t, uint32(256), got.DOFF)
	assert.Equal(t, wire.AdminFlagDLENValid|wire.AdminFlagDOFFValid, got.Flags)
	assert.Equal(t, uint32(1), got.CDW10)
}

func TestAdminXferNoData(t *testing.T) {
	port, ep, _ := openMock(t, 0)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(int, *wire.AdminRequest, []byte) *wire.AdminResponse {
			return &wire.AdminResponse{CDW0: 7}
		}))

	r, n, err := ctrl.AdminXfer(context.Background(), wire.NewAdminRequest(0x80, 0), nil, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint32(7), r.CDW0)
	require.Len(t, seen, 1)
	assert.Zero(t, seen[0].Req.Flags)
}

func TestAdminXferStatus(t *testing.T) {
	port, ep, _ := openMock(t, 0)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(int, *wire.AdminRequest, []byte) *wire.AdminResponse {
			return &wire.AdminResponse{CDW3: 0x0002 << 17}
		}))

	r, n, err := ctrl.AdminXfer(context.Background(), wire.NewAdminRequest(0x06, 0), nil, 0, make([]byte, 64))
	var se *wire.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.StatusKindNVMe, se.Kind)
	assert.Equal(t, uint16(2), se.Code)
	require.NotNil(t, r, "response returned with status error")
	assert.Zero(t, n)
}

func TestAdminXferOversizedResponse(t *testing.T) {
	port, ep, _ := openMock(t, 0)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(int, *wire.AdminRequest, []byte) *wire.AdminResponse {
			return &wire.AdminResponse{Data: make([]byte, 128)}
		}))

	_, _, err = ctrl.AdminXfer(context.Background(), wire.NewAdminRequest(0x06, 0), nil, 0, make([]byte, 64))
	assert.ErrorIs(t, err, wire.ErrMalformedResponse)
}
