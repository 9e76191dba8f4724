package nvme

import (
	"bytes"
	"encoding/binary"

	smart "github.com/anatol/smart.go"
)

// SMARTLog is a decoded SMART / Health Information log page (LID 0x02).
// The 128-bit counters are reduced to their low 64 bits.
type SMARTLog struct {
	*smart.NvmeSMARTLog

	CriticalWarning   uint8
	TemperatureKelvin uint16
	AvailableSpare    uint8
	SpareThreshold    uint8
	PercentUsed       uint8
	DataUnitsRead     uint64
	DataUnitsWritten  uint64
	HostReads         uint64
	HostWrites        uint64
	PowerCycles       uint64
	PowerOnHours      uint64
	UnsafeShutdowns   uint64
	MediaErrors       uint64
}

// TemperatureCelsius returns the composite temperature in degrees Celsius.
func (l *SMARTLog) TemperatureCelsius() int {
	return int(l.TemperatureKelvin) - 273
}

// ParseSMARTLog decodes a SMART / Health Information log page.
func ParseSMARTLog(b []byte) (*SMARTLog, error) {
	if len(b) < SMARTLogSize {
		return nil, short("smart log", len(b), SMARTLogSize)
	}
	var raw smart.NvmeSMARTLog
	if err := binary.Read(bytes.NewReader(b[:SMARTLogSize]), binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	return &SMARTLog{
		NvmeSMARTLog:      &raw,
		CriticalWarning:   raw.CritWarning,
		TemperatureKelvin: raw.Temperature,
		AvailableSpare:    raw.AvailSpare,
		SpareThreshold:    raw.SpareThresh,
		PercentUsed:       raw.PercentUsed,
		DataUnitsRead:     raw.DataUnitsRead.Val[0],
		DataUnitsWritten:  raw.DataUnitsWritten.Val[0],
		HostReads:         raw.HostReads.Val[0],
		HostWrites:        raw.HostWrites.Val[0],
		PowerCycles:       raw.PowerCycles.Val[0],
		PowerOnHours:      raw.PowerOnHours.Val[0],
		UnsafeShutdowns:   raw.UnsafeShutdowns.Val[0],
		MediaErrors:       raw.MediaErrors.Val[0],
	}, nil
}

// Encode returns the 512-byte log page built from the decoded fields. The
// embedded raw structure is not consulted.
func (l *SMARTLog) Encode() []byte {
	low := func(v uint64) smart.Uint128 { return smart.Uint128{Val: [2]uint64{v, 0}} }
	raw := smart.NvmeSMARTLog{
		CritWarning:      l.CriticalWarning,
		Temperature:      l.TemperatureKelvin,
		AvailSpare:       l.AvailableSpare,
		SpareThresh:      l.SpareThreshold,
		PercentUsed:      l.PercentUsed,
		DataUnitsRead:    low(l.DataUnitsRead),
		DataUnitsWritten: low(l.DataUnitsWritten),
		HostReads:        low(l.HostReads),
		HostWrites:       low(l.HostWrites),
		PowerCycles:      low(l.PowerCycles),
		PowerOnHours:     low(l.PowerOnHours),
		UnsafeShutdowns:  low(l.UnsafeShutdowns),
		MediaErrors:      low(l.MediaErrors),
	}
	return encodeFixed(&raw, SMARTLogSize)
}
