package nvme

import (
	"encoding/binary"
	"fmt"
)

// SubsystemHealthStatusSize is the size of the NVM Subsystem Health Data
// Structure returned by Subsystem Health Status Poll.
const SubsystemHealthStatusSize = 8

// NVM subsystem status (NSS) bits.
const (
	NSSPort0LinkActive  uint8 = 1 << 2
	NSSPort1LinkActive  uint8 = 1 << 3
	NSSResetNotRequired uint8 = 1 << 4
	NSSDriveFunctional  uint8 = 1 << 5
)

// Composite controller status (CCS) bits.
const (
	CCSReady                 uint16 = 1 << 0
	CCSFatalStatus           uint16 = 1 << 1
	CCSShutdownStatus        uint16 = 3 << 2
	CCSSubsystemResetOccured uint16 = 1 << 4
	CCSConfigChanged         uint16 = 1 << 5
	CCSNamespaceAttrChanged  uint16 = 1 << 6
	CCSFirmwareActivated     uint16 = 1 << 7
	CCSStatusChanged         uint16 = 1 << 8
	CCSTemperatureChanged    uint16 = 1 << 9
	CCSPercentUsedChanged    uint16 = 1 << 10
	CCSSpareChanged          uint16 = 1 << 11
	CCSCriticalWarning       uint16 = 1 << 12
)

// Composite temperature sentinels.
const (
	ctempNoData        = 0x80
	ctempSensorFailure = 0x81
)

// SubsystemHealthStatus is the NVM Subsystem Health Data Structure.
//
//	offset  size  field
//	0       1     nss (subsystem status)
//	1       1     sw (smart warnings)
//	2       1     ctemp (composite temperature)
//	3       1     pdlu (percentage drive life used)
//	4       2     ccs (composite controller status)
//	6       2     reserved
type SubsystemHealthStatus struct {
	Status               uint8
	SMARTWarnings        uint8
	CompositeTemperature uint8
	PercentDriveLifeUsed uint8
	ControllerStatus     uint16
}

// Temperature returns the composite temperature in degrees Celsius. ok is
// false when the endpoint reports no data or a sensor failure.
func (h *SubsystemHealthStatus) Temperature() (celsius int, ok bool) {
	switch t := h.CompositeTemperature; {
	case t == ctempNoData || t == ctempSensorFailure:
		return 0, false
	case t > 0x7f:
		// Two's complement below zero.
		return int(int8(t)), true
	default:
		return int(t), true
	}
}

// DriveFunctional reports the NSS drive functional bit.
func (h *SubsystemHealthStatus) DriveFunctional() bool {
	return h.Status&NSSDriveFunctional != 0
}

// String returns a one-line summary.
func (h *SubsystemHealthStatus) String() string {
	temp := "n/a"
	if c, ok := h.Temperature(); ok {
		temp = fmt.Sprintf("%dC", c)
	}
	return fmt.Sprintf("nss=0x%02x sw=0x%02x temp=%s life_used=%d%% ccs=0x%04x",
		h.Status, h.SMARTWarnings, temp, h.PercentDriveLifeUsed, h.ControllerStatus)
}

// Encode returns the 8-byte wire form.
func (h *SubsystemHealthStatus) Encode() []byte {
	b := make([]byte, SubsystemHealthStatusSize)
	b[0] = h.Status
	b[1] = h.SMARTWarnings
	b[2] = h.CompositeTemperature
	b[3] = h.PercentDriveLifeUsed
	binary.LittleEndian.PutUint16(b[4:6], h.ControllerStatus)
	return b
}

// ParseSubsystemHealthStatus decodes an NVM Subsystem Health Data Structure.
func ParseSubsystemHealthStatus(b []byte) (*SubsystemHealthStatus, error) {
	if len(b) < SubsystemHealthStatusSize {
		return nil, short("subsystem health status", len(b), SubsystemHealthStatusSize)
	}
	return &SubsystemHealthStatus{
		Status:               b[0],
		SMARTWarnings:        b[1],
		CompositeTemperature: b[2],
		PercentDriveLifeUsed: b[3],
		ControllerStatus:     binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}
