package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// NVMe generic command status codes used by the simulator.
const (
	nvmeInvalidOpcode    uint16 = 0x01
	nvmeInvalidField     uint16 = 0x02
	nvmeInvalidNamespace uint16 = 0x0b
)

// securityBufferSize bounds the Security Send loopback buffer.
const securityBufferSize = 64 * 1024

// fault is an injected outcome for one Admin exchange.
type fault struct {
	status     wire.Status
	nvmeStatus uint16
	short      int
	drop       bool
}

// Endpoint is a simulated NVMe-MI management endpoint.
type Endpoint struct {
	config Config

	mu       sync.Mutex
	health   nvme.SubsystemHealthStatus
	logs     map[nvme.LogID][]byte
	security []byte
	admin    int
	faults   map[int]fault
	requests [][]byte
}

// NewEndpoint creates a simulated endpoint.
func NewEndpoint(config Config) *Endpoint {
	return &Endpoint{
		config: config,
		health: config.Health,
		logs: map[nvme.LogID][]byte{
			nvme.LogSMART: config.SMART.Encode(),
		},
		faults: make(map[int]fault),
	}
}

func (e *Endpoint) debugLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, args...)
	}
}

// FailAt makes the n-th Admin exchange from now (zero-based) fail with MI
// status s, returned as a short error response.
func (e *Endpoint) FailAt(n int, s wire.Status) {
	e.setFault(n, fault{status: s})
}

// FailNVMeAt makes the n-th Admin exchange from now complete with NVMe
// status code sc in completion dword 3.
func (e *Endpoint) FailNVMeAt(n int, sc uint16) {
	e.setFault(n, fault{nvmeStatus: sc})
}

// ShortAt makes the n-th Admin exchange from now return at most length data
// bytes.
func (e *Endpoint) ShortAt(n int, length int) {
	e.setFault(n, fault{short: length})
}

// DropAt makes the n-th Admin exchange from now go unanswered.
func (e *Endpoint) DropAt(n int) {
	e.setFault(n, fault{drop: true})
}

func (e *Endpoint) setFault(n int, f fault) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[e.admin+n] = f
}

// SetLog installs the data returned for log page lid.
func (e *Endpoint) SetLog(lid nvme.LogID, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logs[lid] = append([]byte(nil), data...)
}

// SetHealth replaces the subsystem health status.
func (e *Endpoint) SetHealth(h nvme.SubsystemHealthStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health = h
}

// SecurityData returns the payload assembled from Security Send commands.
func (e *Endpoint) SecurityData() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.security...)
}

// AdminCount returns the number of Admin exchanges handled.
func (e *Endpoint) AdminCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.admin
}

// Requests returns copies of every request message received.
func (e *Endpoint) Requests() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.requests))
	for i, r := range e.requests {
		out[i] = append([]byte(nil), r...)
	}
	return out
}

// Handle implements transport.Handler.
func (e *Endpoint) Handle(_ context.Context, req []byte) ([]byte, error) {
	hdr, err := wire.PeekHeader(req)
	if err != nil {
		return nil, err
	}
	if hdr.Type != wire.MessageTypeNVMe || hdr.Role() != wire.RoleRequest {
		return nil, fmt.Errorf("not an NVMe-MI request: type 0x%02x nmp 0x%02x", hdr.Type, hdr.NMP)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, append([]byte(nil), req...))

	switch hdr.Class() {
	case wire.ClassMI:
		return e.handleMI(req)
	case wire.ClassAdmin:
		return e.handleAdmin(req)
	default:
		e.debugLog("unsupported message class", "class", hdr.Class())
		return errorResponse(hdr, wire.StatusInvalidOpcode), nil
	}
}

// errorResponse is the 8-byte response carrying only a status.
func errorResponse(req wire.Header, s wire.Status) []byte {
	resp := &wire.MIResponse{Header: req.Response(), Status: s}
	return resp.Encode()
}

func (e *Endpoint) handleMI(msg []byte) ([]byte, error) {
	req, _, err := wire.DecodeMIRequest(msg)
	if err != nil {
		return nil, err
	}
	e.debugLog("mi request", "opcode", req.Opcode, "cdw0", req.CDW0, "cdw1", req.CDW1)

	resp := &wire.MIResponse{Header: req.Header.Response()}
	switch req.Opcode {
	case wire.MIOpReadData:
		data, status := e.readData(req.CDW0)
		resp.Status, resp.Data = status, data
	case wire.MIOpSubsystemHealthStatusPoll:
		resp.Data = e.health.Encode()
		if req.CDW1&(1<<31) != 0 {
			e.health.ControllerStatus &= nvme.CCSReady | nvme.CCSFatalStatus | nvme.CCSShutdownStatus
		}
	default:
		resp.Status = wire.StatusInvalidOpcode
	}
	return resp.Encode(), nil
}

func (e *Endpoint) readData(cdw0 uint32) ([]byte, wire.Status) {
	dtyp := nvme.DataType(cdw0 >> 24)
	portID := int(cdw0 >> 16 & 0xff)
	ctrlID := uint16(cdw0)

	switch dtyp {
	case nvme.DataTypeSubsystemInfo:
		return e.config.Subsystem.Encode(), wire.StatusSuccess
	case nvme.DataTypePortInfo:
		if portID >= len(e.config.Ports) {
			return nil, wire.StatusInvalidParameter
		}
		return e.config.Ports[portID].Encode(), wire.StatusSuccess
	case nvme.DataTypeControllerList:
		return e.controllerList(ctrlID).Encode(), wire.StatusSuccess
	case nvme.DataTypeControllerInfo:
		c := e.controller(ctrlID)
		if c == nil {
			return nil, wire.StatusInvalidParameter
		}
		return c.Info.Encode(), wire.StatusSuccess
	default:
		return nil, wire.StatusInvalidParameter
	}
}

func (e *Endpoint) controller(id uint16) *ControllerConfig {
	for i := range e.config.Controllers {
		if e.config.Controllers[i].ID == id {
			return &e.config.Controllers[i]
		}
	}
	return nil
}

func (e *Endpoint) controllerList(start uint16) *nvme.ControllerList {
	l := &nvme.ControllerList{IDs: []uint16{}}
	for _, c := range e.config.Controllers {
		if c.ID >= start {
			l.IDs = append(l.IDs, c.ID)
		}
	}
	return l
}

func (e *Endpoint) handleAdmin(msg []byte) ([]byte, error) {
	req, data, err := wire.DecodeAdminRequest(msg)
	if err != nil {
		return nil, err
	}

	seq := e.admin
	e.admin++
	f, faulted := e.faults[seq]
	delete(e.faults, seq)

	e.debugLog("admin request", "seq", seq, "opcode", nvme.AdminOpName(req.Opcode),
		"ctrl_id", req.CtrlID, "doff", req.DOFF, "dlen", req.DLEN, "data", len(data))

	switch {
	case faulted && f.drop:
		return nil, nil
	case faulted && f.status != wire.StatusSuccess:
		return errorResponse(req.Header, f.status), nil
	}

	resp := &wire.AdminResponse{Header: req.Header.Response()}
	if e.controller(req.CtrlID) == nil {
		resp.Status = wire.StatusInvalidParameter
		return resp.Encode(), nil
	}

	var payload []byte
	var sc uint16
	switch req.Opcode {
	case nvme.AdminOpIdentify:
		payload, sc = e.identify(req)
	case nvme.AdminOpGetLogPage:
		payload, sc = e.logPage(req)
	case nvme.AdminOpSecuritySend:
		sc = e.securitySend(req, data)
	case nvme.AdminOpSecurityRecv:
		payload = e.security
	default:
		sc = nvmeInvalidOpcode
	}
	if faulted && f.nvmeStatus != 0 {
		sc = f.nvmeStatus
	}
	if sc != 0 {
		resp.CDW3 = uint32(sc) << 17
		return resp.Encode(), nil
	}

	if req.Opcode != nvme.AdminOpSecuritySend {
		resp.Data = window(payload, req)
	}
	if e.config.MaxResponseData > 0 && len(resp.Data) > e.config.MaxResponseData {
		resp.Data = resp.Data[:e.config.MaxResponseData]
	}
	if faulted && f.short < len(resp.Data) {
		resp.Data = resp.Data[:f.short]
	}
	resp.CDW0 = uint32(seq)
	return resp.Encode(), nil
}

// window returns the part of payload selected by the request's DOFF and
// DLEN.
func window(payload []byte, req *wire.AdminRequest) []byte {
	var off, n int
	if req.Flags&wire.AdminFlagDOFFValid != 0 {
		off = int(req.DOFF)
	}
	if req.Flags&wire.AdminFlagDLENValid != 0 {
		n = int(req.DLEN)
	}
	if off >= len(payload) {
		return nil
	}
	return payload[off:min(off+n, len(payload))]
}

func (e *Endpoint) identify(req *wire.AdminRequest) ([]byte, uint16) {
	cns := nvme.CNS(req.CDW10 & 0xff)
	cntid := uint16(req.CDW10 >> 16)
	nsid := req.CDW1

	switch cns {
	case nvme.CNSController:
		return e.controller(req.CtrlID).Identity.Encode(), 0
	case nvme.CNSControllerList:
		return pad(e.controllerList(cntid).Encode()), 0
	case nvme.CNSNamespace:
		for _, ns := range e.config.Namespaces {
			if ns.ID == nsid {
				return ns.Identity.Encode(), 0
			}
		}
		return nil, nvmeInvalidNamespace
	case nvme.CNSNamespaceActiveList:
		b := make([]byte, nvme.IdentifyDataSize)
		i := 0
		for _, ns := range e.config.Namespaces {
			if ns.ID > nsid && i < nvme.IdentifyDataSize/4 {
				binary.LittleEndian.PutUint32(b[4*i:], ns.ID)
				i++
			}
		}
		return b, 0
	case nvme.CNSUUIDList:
		return nvme.EncodeUUIDList(e.config.UUIDs), 0
	default:
		return nil, nvmeInvalidField
	}
}

func (e *Endpoint) logPage(req *wire.AdminRequest) ([]byte, uint16) {
	lid := nvme.LogID(req.CDW10 & 0xff)
	data, ok := e.logs[lid]
	if !ok {
		return nil, nvmeInvalidField
	}
	lpo := uint64(req.CDW13)<<32 | uint64(req.CDW12)
	if lpo >= uint64(len(data)) {
		return nil, 0
	}
	return data[lpo:], 0
}

func (e *Endpoint) securitySend(req *wire.AdminRequest, data []byte) uint16 {
	total := int(req.CDW11)
	if total > securityBufferSize {
		return nvmeInvalidField
	}
	var off int
	if req.Flags&wire.AdminFlagDOFFValid != 0 {
		off = int(req.DOFF)
	}
	if off == 0 {
		e.security = make([]byte, total)
	}
	if off+len(data) > len(e.security) {
		return nvmeInvalidField
	}
	copy(e.security[off:], data)
	return 0
}

func pad(b []byte) []byte {
	out := make([]byte, nvme.IdentifyDataSize)
	copy(out, b)
	return out
}

var _ transport.Handler = (*Endpoint)(nil)
