package mi

import (
	"context"
	"errors"
	"testing"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChunkCapacity(t *testing.T) {
	tests := []struct {
		name    string
		maxMsg  int
		dir     direction
		want    int
		wantErr bool
	}{
		{"default data-in", DefaultMaxMessageSize, dataIn, 4096, false},
		{"default data-out", DefaultMaxMessageSize, dataOut, 4096, false},
		{"large message capped", 16384, dataIn, 4096, false},
		{"data-in 84", 84, dataIn, 64, false},
		{"data-in 276", 276, dataIn, 256, false},
		{"data-out 100", 100, dataOut, 32, false},
		{"rounded to dword", 87, dataIn, 64, false},
		{"smallest data-in", MinMaxMessageSize, dataIn, 52, false},
		{"smallest data-out", MinMaxMessageSize, dataOut, 4, false},
		{"data-out no room", 70, dataOut, 0, true},
		{"data-in no room", 22, dataIn, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chunkCapacity(tt.maxMsg, tt.dir)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Identify of 4096 bytes at capacity 64 takes 64 contiguous exchanges.
func TestIdentifyChunking(t *testing.T) {
	port, ep, rec := openMock(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	payload := pattern(nvme.IdentifyDataSize)
	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(i int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			return &wire.AdminResponse{CDW0: uint32(i), Data: windowOf(payload, req)}
		}))

	args := IdentifyControllerArgs(make([]byte, nvme.IdentifyDataSize))
	n, err := ctrl.Identify(context.Background(), args)
	require.NoError(t, err)

	assert.Equal(t, nvme.IdentifyDataSize, n)
	assert.Equal(t, payload, args.Data)
	require.Len(t, seen, 64)
	assert.Equal(t, uint32(63), args.Result, "result from last chunk")

	for i, x := range seen {
		assert.Equal(t, uint32(64), x.Req.DLEN, "chunk %d DLEN", i)
		assert.Equal(t, uint32(64*i), x.Req.DOFF, "chunk %d DOFF", i)
		assert.NotZero(t, x.Req.Flags&wire.AdminFlagDLENValid)
		assert.Equal(t, i != 0, x.Req.Flags&wire.AdminFlagDOFFValid != 0, "chunk %d DOFF flag", i)
		assert.Equal(t, uint16(1), x.Req.CtrlID)
		assert.Equal(t, nvme.AdminOpIdentify, x.Req.Opcode)
		assert.Equal(t, uint32(nvme.CNSController), x.Req.CDW10)
	}

	chunks := rec.chunks()
	require.Len(t, chunks, 64)
	assert.True(t, chunks[63].Final)
	assert.False(t, chunks[0].Final)
}

func TestIdentifyPartialWindow(t *testing.T) {
	port, ep, _ := openMock(t, DefaultMaxMessageSize)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	payload := pattern(nvme.IdentifyDataSize)
	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(_ int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			return &wire.AdminResponse{Data: windowOf(payload, req)}
		}))

	args := IdentifyControllerArgs(make([]byte, 64))
	n, err := ctrl.IdentifyPartial(context.Background(), args, 1024, 64)
	require.NoError(t, err)

	assert.Equal(t, 64, n)
	assert.Equal(t, payload[1024:1088], args.Data)
	require.Len(t, seen, 1)
	assert.Equal(t, uint32(1024), seen[0].Req.DOFF)
	assert.Equal(t, uint32(64), seen[0].Req.DLEN)
}

// A 1024-byte log at capacity 256 stops after a 100-byte second chunk.
func TestGetLogPageShortTransfer(t *testing.T) {
	port, ep, rec := openMock(t, 276)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	payload := pattern(1024)
	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(i int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			data := windowOf(payload, req)
			if i == 1 {
				data = data[:100]
			}
			return &wire.AdminResponse{CDW0: 0x100 + uint32(i), Data: data}
		}))

	args := &GetLogPageArgs{LID: nvme.LogErrorInfo, NSID: nvme.NSIDAll, Len: 1024}
	require.NoError(t, ctrl.GetLogPage(context.Background(), args))

	assert.Equal(t, uint32(356), args.Len)
	assert.Equal(t, payload[:356], args.Log[:356])
	assert.Equal(t, uint32(0x101), args.Result)
	require.Len(t, seen, 2, "no exchange after the short chunk")

	for i, x := range seen {
		assert.Equal(t, uint32(256*i), x.Req.DOFF)
		assert.Equal(t, uint32(256), x.Req.DLEN)
		assert.NotZero(t, x.Req.CDW10&(1<<15), "RAE on non-final chunk %d", i)
		assert.Equal(t, uint32(63), x.Req.CDW10>>16, "NUMDL of chunk %d", i)
		assert.Equal(t, nvme.NSIDAll, x.Req.CDW1)
	}

	chunks := rec.chunks()
	require.Len(t, chunks, 2)
	assert.True(t, chunks[1].Short())
	assert.True(t, chunks[1].Final)
}

func TestGetLogPageRAEOnlyOnNonFinal(t *testing.T) {
	port, ep, _ := openMock(t, 276)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	payload := pattern(600)
	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(_ int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			return &wire.AdminResponse{Data: windowOf(payload, req)}
		}))

	args := &GetLogPageArgs{LID: nvme.LogSMART, Len: 600}
	require.NoError(t, ctrl.GetLogPage(context.Background(), args))
	assert.Equal(t, uint32(600), args.Len)

	require.Len(t, seen, 3)
	assert.NotZero(t, seen[0].Req.CDW10&(1<<15))
	assert.NotZero(t, seen[1].Req.CDW10&(1<<15))
	assert.Zero(t, seen[2].Req.CDW10&(1<<15), "final chunk leaves RAE to the caller")
	assert.Equal(t, uint32(88/4-1), seen[2].Req.CDW10>>16, "final chunk NUMDL")
}

func TestZeroLengthChunkIsShort(t *testing.T) {
	port, ep, _ := openMock(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(i int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			if i == 2 {
				return &wire.AdminResponse{}
			}
			return &wire.AdminResponse{Data: make([]byte, req.DLEN)}
		}))

	n, err := ctrl.Identify(context.Background(), IdentifyControllerArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, 128, n)
	assert.Len(t, seen, 3)
}

// Security Send of 96 bytes at capacity 32 repeats the selector in every
// chunk.
func TestSecuritySendChunking(t *testing.T) {
	port, ep, _ := openMock(t, 100)
	ctrl, err := ep.Controller(2)
	require.NoError(t, err)

	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(i int, _ *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			return &wire.AdminResponse{CDW0: uint32(i + 10)}
		}))

	payload := pattern(96)
	args := &SecurityArgs{SECP: 0xea, SPSP0: 0x01, SPSP1: 0x02, NSSF: 0x03, Data: payload, Len: 96}
	require.NoError(t, ctrl.SecuritySend(context.Background(), args))

	require.Len(t, seen, 3)
	var sent []byte
	for i, x := range seen {
		assert.Equal(t, nvme.AdminOpSecuritySend, x.Req.Opcode)
		assert.Equal(t, uint32(0xea020103), x.Req.CDW10, "chunk %d cdw10", i)
		assert.Equal(t, uint32(96), x.Req.CDW11, "chunk %d cdw11", i)
		assert.Equal(t, uint32(32*i), x.Req.DOFF)
		assert.Equal(t, uint32(32), x.Req.DLEN)
		assert.Len(t, x.Data, 32)
		sent = append(sent, x.Data...)
	}
	assert.Equal(t, payload, sent)
	assert.Equal(t, uint32(12), args.Result)
}

func TestSecurityReceive(t *testing.T) {
	port, ep, _ := openMock(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	payload := pattern(100)
	var seen []adminExchange
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		adminResponder(t, &seen, func(_ int, req *wire.AdminRequest, _ []byte) *wire.AdminResponse {
			return &wire.AdminResponse{Data: windowOf(payload, req)}
		}))

	args := &SecurityArgs{SECP: 0x01, SPSP0: 0x01, Len: 256}
	require.NoError(t, ctrl.SecurityReceive(context.Background(), args))

	assert.Equal(t, uint32(100), args.Len, "endpoint returned less than asked")
	assert.Equal(t, payload, args.Data[:100])
	require.Len(t, seen, 2)
	for _, x := range seen {
		assert.Equal(t, nvme.AdminOpSecurityRecv, x.Req.Opcode)
		assert.Equal(t, uint32(0x01000100), x.Req.CDW10)
		assert.Equal(t, uint32(256), x.Req.CDW11)
	}
}

func TestChunkFailureAborts(t *testing.T) {
	tests := []struct {
		name    string
		respond func() ([]byte, error)
		check   func(t *testing.T, err error)
	}{
		{
			name: "mi status",
			respond: func() ([]byte, error) {
				h := wire.NewHeader(wire.ClassAdmin, wire.RoleResponse, 0)
				return (&wire.MIResponse{Header: h, Status: wire.StatusInternalError}).Encode(), nil
			},
			check: func(t *testing.T, err error) {
				var se *wire.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, wire.StatusKindMI, se.Kind)
				assert.Equal(t, wire.StatusInternalError, se.MIStatus())
			},
		},
		{
			name: "nvme status",
			respond: func() ([]byte, error) {
				h := wire.NewHeader(wire.ClassAdmin, wire.RoleResponse, 0)
				return (&wire.AdminResponse{Header: h, CDW3: 0x0b << 17}).Encode(), nil
			},
			check: func(t *testing.T, err error) {
				var se *wire.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, wire.StatusKindNVMe, se.Kind)
				assert.Equal(t, uint16(0x0b), se.Code)
			},
		},
		{
			name: "transport",
			respond: func() ([]byte, error) {
				return nil, context.DeadlineExceeded
			},
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
		{
			name: "malformed",
			respond: func() ([]byte, error) {
				h := wire.NewHeader(wire.ClassMI, wire.RoleResponse, 0)
				return (&wire.AdminResponse{Header: h}).Encode(), nil
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, wire.ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, ep, rec := openMock(t, 84)
			ctrl, err := ep.Controller(1)
			require.NoError(t, err)

			calls := 0
			port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
				func(_ context.Context, msg []byte) ([]byte, error) {
					calls++
					if calls == 3 {
						return tt.respond()
					}
					req, _, err := wire.DecodeAdminRequest(msg)
					require.NoError(t, err)
					return (&wire.AdminResponse{Header: req.Header.Response(), Data: make([]byte, req.DLEN)}).Encode(), nil
				})

			args := IdentifyControllerArgs(nil)
			n, err := ctrl.Identify(context.Background(), args)
			require.Error(t, err)
			tt.check(t, err)
			assert.Zero(t, n)
			assert.Equal(t, 3, calls, "no exchange after the failing chunk")

			chunks := rec.chunks()
			require.Len(t, chunks, 3)
			assert.Zero(t, chunks[2].Returned)
		})
	}
}

func TestChunkContextCancel(t *testing.T) {
	port, ep, _ := openMock(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	port.EXPECT().Exchange(mock.Anything, mock.Anything).RunAndReturn(
		func(ctx context.Context, msg []byte) ([]byte, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			req, _, _ := wire.DecodeAdminRequest(msg)
			return (&wire.AdminResponse{Header: req.Header.Response(), Data: make([]byte, req.DLEN)}).Encode(), nil
		})

	_, err = ctrl.Identify(ctx, IdentifyControllerArgs(nil))
	assert.ErrorIs(t, err, context.Canceled)
	var te *TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 2, calls)
}
