package nvme

import (
	"encoding/binary"
	"testing"
)

func TestParseSMARTLog(t *testing.T) {
	in := &SMARTLog{
		CriticalWarning:   0x02,
		TemperatureKelvin: 310,
		AvailableSpare:    100,
		SpareThreshold:    10,
		PercentUsed:       4,
		DataUnitsRead:     123456,
		DataUnitsWritten:  654321,
		PowerCycles:       42,
		PowerOnHours:      1000,
		MediaErrors:       1,
	}
	data := in.Encode()
	if len(data) != SMARTLogSize {
		t.Fatalf("Encode() size = %d", len(data))
	}
	if data[1] != 0x36 || data[2] != 0x01 {
		t.Errorf("temperature bytes = %x, want 3601", data[1:3])
	}

	got, err := ParseSMARTLog(data)
	if err != nil {
		t.Fatalf("ParseSMARTLog failed: %v", err)
	}
	if got.NvmeSMARTLog == nil {
		t.Fatal("raw log not decoded")
	}
	if got.NvmeSMARTLog.Temperature != 310 || got.NvmeSMARTLog.DataUnitsRead.Val[0] != 123456 {
		t.Errorf("raw Temperature/DataUnitsRead = %d/%d",
			got.NvmeSMARTLog.Temperature, got.NvmeSMARTLog.DataUnitsRead.Val[0])
	}
	if got.TemperatureCelsius() != 37 {
		t.Errorf("TemperatureCelsius() = %d, want 37", got.TemperatureCelsius())
	}
	if got.CriticalWarning != 0x02 || got.PercentUsed != 4 || got.AvailableSpare != 100 {
		t.Errorf("header fields = %+v", got)
	}
	if got.DataUnitsRead != 123456 || got.DataUnitsWritten != 654321 {
		t.Errorf("data units = %d/%d", got.DataUnitsRead, got.DataUnitsWritten)
	}
	if got.PowerCycles != 42 || got.PowerOnHours != 1000 || got.MediaErrors != 1 {
		t.Errorf("counters = %d/%d/%d", got.PowerCycles, got.PowerOnHours, got.MediaErrors)
	}
}

func TestParseSMARTLogRaw(t *testing.T) {
	b := make([]byte, SMARTLogSize)
	le := binary.LittleEndian
	b[0] = 0x01
	le.PutUint16(b[1:3], 330)
	b[3] = 90
	b[5] = 12
	le.PutUint64(b[32:40], 777)
	le.PutUint64(b[48:56], 888)
	le.PutUint64(b[112:120], 5)
	le.PutUint64(b[128:136], 2400)
	le.PutUint64(b[160:168], 3)

	got, err := ParseSMARTLog(b)
	if err != nil {
		t.Fatalf("ParseSMARTLog failed: %v", err)
	}
	if got.NvmeSMARTLog.PowerOnHours.Val[0] != 2400 {
		t.Errorf("raw PowerOnHours = %d, want 2400", got.NvmeSMARTLog.PowerOnHours.Val[0])
	}
	if got.CriticalWarning != 0x01 || got.TemperatureKelvin != 330 || got.AvailableSpare != 90 || got.PercentUsed != 12 {
		t.Errorf("header fields = %+v", got)
	}
	if got.DataUnitsRead != 777 || got.DataUnitsWritten != 888 {
		t.Errorf("data units = %d/%d", got.DataUnitsRead, got.DataUnitsWritten)
	}
	if got.PowerCycles != 5 || got.PowerOnHours != 2400 || got.MediaErrors != 3 {
		t.Errorf("counters = %d/%d/%d", got.PowerCycles, got.PowerOnHours, got.MediaErrors)
	}
	if _, err := ParseSMARTLog(b[:100]); err == nil {
		t.Error("short log accepted")
	}
}
