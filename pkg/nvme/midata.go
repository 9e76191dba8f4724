package nvme

import (
	"encoding/binary"
	"fmt"

	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// MIDataStructureSize is the size of the fixed NVMe-MI Read Data structures
// (subsystem, port and controller information).
const MIDataStructureSize = 32

// MaxControllerListEntries is the number of identifiers a controller list
// can carry.
const MaxControllerListEntries = 2047

func short(what string, got, want int) error {
	return fmt.Errorf("%w: %s length %d shorter than %d", wire.ErrMalformedResponse, what, got, want)
}

// SubsystemInfo is the NVM Subsystem Information data structure.
//
//	offset  size  field
//	0       1     nump (number of ports, zero-based)
//	1       1     mjr (NVMe-MI major version)
//	2       1     mnr (NVMe-MI minor version)
//	3       29    reserved
type SubsystemInfo struct {
	NumPortsRaw  uint8
	MajorVersion uint8
	MinorVersion uint8
}

// NumPorts returns the number of ports in the subsystem.
func (s *SubsystemInfo) NumPorts() int {
	return int(s.NumPortsRaw) + 1
}

// Version returns the NVMe-MI version as "major.minor".
func (s *SubsystemInfo) Version() string {
	return fmt.Sprintf("%d.%d", s.MajorVersion, s.MinorVersion)
}

// Encode returns the 32-byte wire form.
func (s *SubsystemInfo) Encode() []byte {
	b := make([]byte, MIDataStructureSize)
	b[0] = s.NumPortsRaw
	b[1] = s.MajorVersion
	b[2] = s.MinorVersion
	return b
}

// ParseSubsystemInfo decodes an NVM Subsystem Information structure.
func ParseSubsystemInfo(b []byte) (*SubsystemInfo, error) {
	if len(b) < MIDataStructureSize {
		return nil, short("subsystem info", len(b), MIDataStructureSize)
	}
	return &SubsystemInfo{
		NumPortsRaw:  b[0],
		MajorVersion: b[1],
		MinorVersion: b[2],
	}, nil
}

// PortType identifies the port variant of a PortInfo.
type PortType uint8

const (
	PortTypeInactive PortType = 0x00
	PortTypePCIe     PortType = 0x01
	PortTypeSMBus    PortType = 0x02
)

// String returns the port type name.
func (t PortType) String() string {
	switch t {
	case PortTypeInactive:
		return "INACTIVE"
	case PortTypePCIe:
		return "PCIE"
	case PortTypeSMBus:
		return "SMBUS"
	default:
		return "UNKNOWN"
	}
}

// PCIePortInfo is the PCIe-specific part of a PortInfo.
type PCIePortInfo struct {
	MaxPayloadSize      uint8 // mps
	SupportedLinkSpeeds uint8 // sls
	CurrentLinkSpeed    uint8 // cls
	MaxLinkWidth        uint8 // mlw
	NegotiatedLinkWidth uint8 // nlw
	PortNumber          uint8 // pn
}

// SMBusPortInfo is the two-wire-specific part of a PortInfo.
type SMBusPortInfo struct {
	VPDAddress      uint8 // vpd_addr
	MaxVPDFrequency uint8 // mvpd_freq
	MEAddress       uint8 // mme_addr
	MaxMEFrequency  uint8 // mme_freq
	NVMeBasicMgmt   uint8 // nvmebm
}

// PortInfo is the Port Information data structure.
//
//	offset  size  field
//	0       1     portt (port type)
//	1       1     reserved
//	2       2     mmctptus (max MCTP transmission unit size)
//	4       4     meb (management endpoint buffer size)
//	8       24    port-type specific data
//
// Exactly one of PCIe and SMBus is set, according to Type; both are nil for
// inactive or unknown ports.
type PortInfo struct {
	Type                PortType
	MaxMCTPTransmission uint16
	MEBSize             uint32
	PCIe                *PCIePortInfo
	SMBus               *SMBusPortInfo
}

// Encode returns the 32-byte wire form.
func (p *PortInfo) Encode() []byte {
	b := make([]byte, MIDataStructureSize)
	b[0] = uint8(p.Type)
	binary.LittleEndian.PutUint16(b[2:4], p.MaxMCTPTransmission)
	binary.LittleEndian.PutUint32(b[4:8], p.MEBSize)
	switch {
	case p.PCIe != nil:
		b[8] = p.PCIe.MaxPayloadSize
		b[9] = p.PCIe.SupportedLinkSpeeds
		b[10] = p.PCIe.CurrentLinkSpeed
		b[11] = p.PCIe.MaxLinkWidth
		b[12] = p.PCIe.NegotiatedLinkWidth
		b[13] = p.PCIe.PortNumber
	case p.SMBus != nil:
		b[8] = p.SMBus.VPDAddress
		b[9] = p.SMBus.MaxVPDFrequency
		b[10] = p.SMBus.MEAddress
		b[11] = p.SMBus.MaxMEFrequency
		b[12] = p.SMBus.NVMeBasicMgmt
	}
	return b
}

// ParsePortInfo decodes a Port Information structure.
func ParsePortInfo(b []byte) (*PortInfo, error) {
	if len(b) < MIDataStructureSize {
		return nil, short("port info", len(b), MIDataStructureSize)
	}
	p := &PortInfo{
		Type:                PortType(b[0]),
		MaxMCTPTransmission: binary.LittleEndian.Uint16(b[2:4]),
		MEBSize:             binary.LittleEndian.Uint32(b[4:8]),
	}
	switch p.Type {
	case PortTypePCIe:
		p.PCIe = &PCIePortInfo{
			MaxPayloadSize:      b[8],
			SupportedLinkSpeeds: b[9],
			CurrentLinkSpeed:    b[10],
			MaxLinkWidth:        b[11],
			NegotiatedLinkWidth: b[12],
			PortNumber:          b[13],
		}
	case PortTypeSMBus:
		p.SMBus = &SMBusPortInfo{
			VPDAddress:      b[8],
			MaxVPDFrequency: b[9],
			MEAddress:       b[10],
			MaxMEFrequency:  b[11],
			NVMeBasicMgmt:   b[12],
		}
	}
	return p, nil
}

// ControllerInfo is the Controller Information data structure.
//
//	offset  size  field
//	0       1     portid
//	1       4     reserved
//	5       1     prii (PCIe routing id information)
//	6       2     pri (PCIe routing id)
//	8       2     vid
//	10      2     did
//	12      2     ssvid
//	14      2     ssid
//	16      16    reserved
type ControllerInfo struct {
	PortID            uint8
	RoutingIDInfo     uint8
	RoutingID         uint16
	VendorID          uint16
	DeviceID          uint16
	SubsystemVendorID uint16
	SubsystemID       uint16
}

// RoutingIDValid reports whether RoutingID holds a valid PCIe routing id.
func (c *ControllerInfo) RoutingIDValid() bool {
	return c.RoutingIDInfo&0x01 != 0
}

// Encode returns the 32-byte wire form.
func (c *ControllerInfo) Encode() []byte {
	b := make([]byte, MIDataStructureSize)
	le := binary.LittleEndian
	b[0] = c.PortID
	b[5] = c.RoutingIDInfo
	le.PutUint16(b[6:8], c.RoutingID)
	le.PutUint16(b[8:10], c.VendorID)
	le.PutUint16(b[10:12], c.DeviceID)
	le.PutUint16(b[12:14], c.SubsystemVendorID)
	le.PutUint16(b[14:16], c.SubsystemID)
	return b
}

// ParseControllerInfo decodes a Controller Information structure.
func ParseControllerInfo(b []byte) (*ControllerInfo, error) {
	if len(b) < MIDataStructureSize {
		return nil, short("controller info", len(b), MIDataStructureSize)
	}
	le := binary.LittleEndian
	return &ControllerInfo{
		PortID:            b[0],
		RoutingIDInfo:     b[5],
		RoutingID:         le.Uint16(b[6:8]),
		VendorID:          le.Uint16(b[8:10]),
		DeviceID:          le.Uint16(b[10:12]),
		SubsystemVendorID: le.Uint16(b[12:14]),
		SubsystemID:       le.Uint16(b[14:16]),
	}, nil
}

// ControllerList is a list of controller identifiers: a little-endian count
// followed by that many little-endian identifiers. The same layout serves
// NVMe-MI Read Data and Identify CNS 0x12/0x13.
type ControllerList struct {
	IDs []uint16
}

// Encode returns the wire form: count followed by the identifiers. Lists
// longer than MaxControllerListEntries are truncated.
func (l *ControllerList) Encode() []byte {
	ids := l.IDs
	if len(ids) > MaxControllerListEntries {
		ids = ids[:MaxControllerListEntries]
	}
	b := make([]byte, 2+2*len(ids))
	binary.LittleEndian.PutUint16(b[0:2], uint16(len(ids)))
	for i, id := range ids {
		binary.LittleEndian.PutUint16(b[2+2*i:], id)
	}
	return b
}

// ParseControllerList decodes a controller list. The count must not claim
// more identifiers than b holds.
func ParseControllerList(b []byte) (*ControllerList, error) {
	if len(b) < 2 {
		return nil, short("controller list", len(b), 2)
	}
	n := int(binary.LittleEndian.Uint16(b[0:2]))
	if n > MaxControllerListEntries {
		return nil, fmt.Errorf("%w: controller list count %d exceeds %d", wire.ErrMalformedResponse, n, MaxControllerListEntries)
	}
	if want := 2 + 2*n; len(b) < want {
		return nil, short("controller list", len(b), want)
	}
	l := &ControllerList{IDs: make([]uint16, n)}
	for i := range l.IDs {
		l.IDs[i] = binary.LittleEndian.Uint16(b[2+2*i:])
	}
	return l, nil
}
