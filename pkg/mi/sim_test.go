package mi

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/sim"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openSim opens an endpoint on a simulated subsystem.
func openSim(t *testing.T, maxMsg int) (*sim.Endpoint, *Endpoint) {
	t.Helper()
	target := sim.NewEndpoint(sim.DefaultConfig())
	root := NewRoot(RootConfig{})
	t.Cleanup(func() { _ = root.Close() })

	ep, err := root.Open(sim.NewPort(target, maxMsg), EndpointConfig{Address: "sim"})
	require.NoError(t, err)
	return target, ep
}

func TestSimReadMIData(t *testing.T) {
	_, ep := openSim(t, 0)
	ctx := context.Background()

	info, err := ep.ReadSubsystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.NumPorts())
	assert.Equal(t, "1.2", info.Version())

	pcie, err := ep.ReadPortInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, nvme.PortTypePCIe, pcie.Type)
	require.NotNil(t, pcie.PCIe)
	assert.Equal(t, uint8(4), pcie.PCIe.NegotiatedLinkWidth)

	smbus, err := ep.ReadPortInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, nvme.PortTypeSMBus, smbus.Type)
	require.NotNil(t, smbus.SMBus)
	assert.Equal(t, uint8(0x1d), smbus.SMBus.MEAddress)

	list, err := ep.ReadControllerList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2}, list.IDs)

	list, err = ep.ReadControllerList(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2}, list.IDs)

	ci, err := ep.ReadControllerInfo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1b36), ci.VendorID)

	_, err = ep.ReadPortInfo(ctx, 7)
	var se *wire.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.StatusKindMI, se.Kind)
	assert.Equal(t, wire.StatusInvalidParameter, se.MIStatus())
}

func TestSimHealthPollClear(t *testing.T) {
	target, ep := openSim(t, 0)
	ctx := context.Background()

	target.SetHealth(nvme.SubsystemHealthStatus{
		Status:               nvme.NSSDriveFunctional,
		CompositeTemperature: 0xfb,
		ControllerStatus:     nvme.CCSReady | nvme.CCSTemperatureChanged,
	})

	h, err := ep.SubsystemHealthStatusPoll(ctx, false)
	require.NoError(t, err)
	assert.True(t, h.DriveFunctional())
	temp, ok := h.Temperature()
	assert.True(t, ok)
	assert.Equal(t, -5, temp)
	assert.Equal(t, nvme.CCSReady|nvme.CCSTemperatureChanged, h.ControllerStatus)

	h, err = ep.SubsystemHealthStatusPoll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, nvme.CCSReady|nvme.CCSTemperatureChanged, h.ControllerStatus, "reported before clearing")

	h, err = ep.SubsystemHealthStatusPoll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, nvme.CCSReady, h.ControllerStatus)
}

func TestSimIdentify(t *testing.T) {
	_, ep := openSim(t, 0)
	ctx := context.Background()
	ctrl, err := ep.Controller(2)
	require.NoError(t, err)

	id, err := ctrl.IdentifyController(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1b36), id.VendorID)
	assert.Equal(t, uint16(2), id.ControllerID)
	assert.Equal(t, "NVMEMISIM0001", id.SerialNumber)
	assert.Equal(t, "1.0", id.FirmwareRevision)
	assert.Equal(t, "2.0.0", id.VersionString())

	ids, err := ctrl.IdentifyControllerList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2}, ids.IDs)

	ns, err := ctrl.IdentifyNamespace(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<18), ns.Size)
	assert.Equal(t, uint32(4096), ns.LBADataSize)

	active, err := ctrl.IdentifyActiveNamespaces(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, active)

	_, err = ctrl.IdentifyNamespace(ctx, 9)
	var se *wire.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.StatusKindNVMe, se.Kind)
}

// A small message size splits Identify into chunks that reassemble to the
// same bytes.
func TestSimIdentifyChunked(t *testing.T) {
	ctx := context.Background()

	_, whole := openSim(t, 0)
	c1, err := whole.Controller(1)
	require.NoError(t, err)
	want := IdentifyControllerArgs(nil)
	_, err = c1.Identify(ctx, want)
	require.NoError(t, err)

	target, small := openSim(t, 276)
	c2, err := small.Controller(1)
	require.NoError(t, err)
	got := IdentifyControllerArgs(nil)
	n, err := c2.Identify(ctx, got)
	require.NoError(t, err)

	assert.Equal(t, nvme.IdentifyDataSize, n)
	assert.True(t, bytes.Equal(want.Data, got.Data))
	assert.Equal(t, 16, target.AdminCount())
	assert.Equal(t, uint32(15), got.Result, "cdw0 of the last exchange")
}

func TestSimShortChunkEndsTransfer(t *testing.T) {
	target, ep := openSim(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)
	target.ShortAt(1, 20)

	args := IdentifyControllerArgs(nil)
	n, err := ctrl.Identify(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, 84, n)
	assert.Equal(t, 2, target.AdminCount())
}

func TestSimChunkFault(t *testing.T) {
	target, ep := openSim(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)
	target.FailAt(2, wire.StatusInternalError)

	args := IdentifyControllerArgs(nil)
	n, err := ctrl.Identify(context.Background(), args)
	var se *wire.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.StatusInternalError, se.MIStatus())
	assert.Zero(t, n)
	assert.Equal(t, 3, target.AdminCount())
}

func TestSimDroppedResponse(t *testing.T) {
	target, ep := openSim(t, 0)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)
	target.DropAt(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ctrl.IdentifyController(ctx)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimUnknownController(t *testing.T) {
	_, ep := openSim(t, 0)
	ctrl, err := ep.Controller(42)
	require.NoError(t, err, "binding does not check the id")

	_, err = ctrl.IdentifyController(context.Background())
	var se *wire.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.StatusInvalidParameter, se.MIStatus())
}

func TestSimSMARTLog(t *testing.T) {
	_, ep := openSim(t, 276)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	smart, err := ctrl.GetSMARTLog(context.Background(), nvme.NSIDAll)
	require.NoError(t, err)
	assert.Equal(t, uint16(311), smart.TemperatureKelvin)
	assert.Equal(t, 38, smart.TemperatureCelsius())
	assert.Equal(t, uint64(1234), smart.PowerOnHours)
	assert.Equal(t, uint64(17), smart.PowerCycles)
}

func TestSimGetLogPageOffset(t *testing.T) {
	target, ep := openSim(t, 84)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)

	page := pattern(1024)
	target.SetLog(nvme.LogFirmwareSlot, page)

	args := &GetLogPageArgs{LID: nvme.LogFirmwareSlot, LPO: 512, Len: 512}
	require.NoError(t, ctrl.GetLogPage(context.Background(), args))
	assert.Equal(t, uint32(512), args.Len)
	assert.Equal(t, page[512:], args.Log)

	args = &GetLogPageArgs{LID: nvme.LogFirmwareSlot, LPO: 1000, Len: 512}
	require.NoError(t, ctrl.GetLogPage(context.Background(), args))
	assert.Equal(t, uint32(24), args.Len, "log ends early")
	assert.Equal(t, page[1000:], args.Log[:args.Len])
}

func TestSimSecurityLoopback(t *testing.T) {
	target, ep := openSim(t, 100)
	ctrl, err := ep.Controller(1)
	require.NoError(t, err)
	ctx := context.Background()

	payload := pattern(200)
	send := &SecurityArgs{SECP: 0xea, SPSP0: 1, Data: payload, Len: uint32(len(payload))}
	require.NoError(t, ctrl.SecuritySend(ctx, send))
	assert.Equal(t, payload, target.SecurityData())

	recv := &SecurityArgs{SECP: 0xea, SPSP0: 1, Len: 256}
	require.NoError(t, ctrl.SecurityReceive(ctx, recv))
	assert.Equal(t, uint32(200), recv.Len)
	assert.Equal(t, payload, recv.Data[:recv.Len])
}

func TestSimClosedPort(t *testing.T) {
	target := sim.NewEndpoint(sim.DefaultConfig())
	port := sim.NewPort(target, 0)
	ep, err := NewRoot(RootConfig{}).Open(port, DefaultEndpointConfig())
	require.NoError(t, err)
	require.NoError(t, port.Close())

	_, err = ep.ReadSubsystemInfo(context.Background())
	assert.ErrorIs(t, err, transport.ErrPortClosed)
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}
