package sim

import (
	"log/slog"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
)

// ControllerConfig describes one simulated controller.
type ControllerConfig struct {
	ID       uint16
	Info     nvme.ControllerInfo
	Identity nvme.ControllerTemplate
}

// NamespaceConfig describes one simulated namespace.
type NamespaceConfig struct {
	ID       uint32
	Identity nvme.NamespaceTemplate
}

// Config configures a simulated endpoint.
type Config struct {
	Subsystem   nvme.SubsystemInfo
	Ports       []nvme.PortInfo
	Controllers []ControllerConfig
	Namespaces  []NamespaceConfig
	UUIDs       []nvme.UUIDListEntry
	Health      nvme.SubsystemHealthStatus
	SMART       nvme.SMARTLog

	// MaxResponseData caps the data returned in one Admin response.
	// Zero means no cap.
	MaxResponseData int

	// Logger for operational logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a subsystem with a PCIe and an SMBus port, two
// controllers and one 1 GiB namespace.
func DefaultConfig() Config {
	ctrl := func(id uint16, port uint8) ControllerConfig {
		return ControllerConfig{
			ID: id,
			Info: nvme.ControllerInfo{
				PortID:            port,
				VendorID:          0x1b36,
				DeviceID:          0x0010,
				SubsystemVendorID: 0x1af4,
				SubsystemID:       0x1100,
			},
			Identity: nvme.ControllerTemplate{
				VendorID:         0x1b36,
				SerialNumber:     "NVMEMISIM0001",
				ModelNumber:      "nvme-mi-go simulated controller",
				FirmwareRevision: "1.0",
				ControllerID:     id,
				Version:          0x00020000,
			},
		}
	}

	return Config{
		Subsystem: nvme.SubsystemInfo{NumPortsRaw: 1, MajorVersion: 1, MinorVersion: 2},
		Ports: []nvme.PortInfo{
			{
				Type:                nvme.PortTypePCIe,
				MaxMCTPTransmission: 64,
				MEBSize:             4096,
				PCIe: &nvme.PCIePortInfo{
					MaxPayloadSize:      1,
					SupportedLinkSpeeds: 0x0f,
					CurrentLinkSpeed:    4,
					MaxLinkWidth:        4,
					NegotiatedLinkWidth: 4,
				},
			},
			{
				Type:                nvme.PortTypeSMBus,
				MaxMCTPTransmission: 64,
				SMBus: &nvme.SMBusPortInfo{
					VPDAddress:      0xa6,
					MaxVPDFrequency: 1,
					MEAddress:       0x1d,
					MaxMEFrequency:  1,
					NVMeBasicMgmt:   1,
				},
			},
		},
		Controllers: []ControllerConfig{ctrl(1, 0), ctrl(2, 0)},
		Namespaces: []NamespaceConfig{
			{ID: 1, Identity: nvme.NamespaceTemplate{Blocks: 1 << 18, LBADataSize: 4096}},
		},
		Health: nvme.SubsystemHealthStatus{
			Status:               nvme.NSSDriveFunctional | nvme.NSSPort0LinkActive,
			SMARTWarnings:        0xff,
			CompositeTemperature: 38,
			PercentDriveLifeUsed: 2,
			ControllerStatus:     nvme.CCSReady,
		},
		SMART: nvme.SMARTLog{
			TemperatureKelvin: 311,
			AvailableSpare:    100,
			SpareThreshold:    10,
			PercentUsed:       2,
			PowerCycles:       17,
			PowerOnHours:      1234,
		},
	}
}
