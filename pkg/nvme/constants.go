package nvme

// Admin command opcodes relayed over the Admin channel.
const (
	AdminOpGetLogPage   uint8 = 0x02
	AdminOpIdentify     uint8 = 0x06
	AdminOpSecuritySend uint8 = 0x81
	AdminOpSecurityRecv uint8 = 0x82
)

// AdminOpName returns a display name for an Admin opcode.
func AdminOpName(op uint8) string {
	switch op {
	case AdminOpGetLogPage:
		return "GET_LOG_PAGE"
	case AdminOpIdentify:
		return "IDENTIFY"
	case AdminOpSecuritySend:
		return "SECURITY_SEND"
	case AdminOpSecurityRecv:
		return "SECURITY_RECV"
	default:
		return "UNKNOWN"
	}
}

// Sizes of fixed NVMe data structures in bytes.
const (
	// IdentifyDataSize is the size of every Identify data structure.
	IdentifyDataSize = 4096

	// SMARTLogSize is the size of the SMART / Health Information log page.
	SMARTLogSize = 512
)

// Identifier sentinels.
const (
	// NSIDNone addresses no namespace.
	NSIDNone uint32 = 0

	// NSIDAll addresses all namespaces (controller-wide log pages).
	NSIDAll uint32 = 0xffffffff

	// CNTIDNone is the controller identifier used when none applies.
	CNTIDNone uint16 = 0

	// CNSSpecificIDNone is the CNS-specific identifier used when none applies.
	CNSSpecificIDNone uint16 = 0

	// UUIDIndexNone selects no UUID index.
	UUIDIndexNone uint8 = 0

	// LSINone is the log specific identifier used when none applies.
	LSINone uint16 = 0
)

// CSI is a command set identifier.
type CSI uint8

const (
	CSINVM CSI = 0x00
	CSIKV  CSI = 0x01
	CSIZNS CSI = 0x02
)

// CNS is an Identify Controller or Namespace Structure value.
type CNS uint8

const (
	CNSNamespace               CNS = 0x00
	CNSController              CNS = 0x01
	CNSNamespaceActiveList     CNS = 0x02
	CNSNamespaceDescriptorList CNS = 0x03
	CNSNVMSetList              CNS = 0x04
	CNSCSINamespace            CNS = 0x05
	CNSCSIController           CNS = 0x06
	CNSAllocatedNamespaceList  CNS = 0x10
	CNSAllocatedNamespace      CNS = 0x11
	CNSNamespaceControllerList CNS = 0x12
	CNSControllerList          CNS = 0x13
	CNSPrimaryControllerCaps   CNS = 0x14
	CNSSecondaryControllerList CNS = 0x15
	CNSNamespaceGranularity    CNS = 0x16
	CNSUUIDList                CNS = 0x17
)

// String returns the CNS name.
func (c CNS) String() string {
	switch c {
	case CNSNamespace:
		return "NAMESPACE"
	case CNSController:
		return "CONTROLLER"
	case CNSNamespaceActiveList:
		return "NS_ACTIVE_LIST"
	case CNSNamespaceDescriptorList:
		return "NS_DESC_LIST"
	case CNSNVMSetList:
		return "NVMSET_LIST"
	case CNSCSINamespace:
		return "CSI_NS"
	case CNSCSIController:
		return "CSI_CTRL"
	case CNSAllocatedNamespaceList:
		return "ALLOCATED_NS_LIST"
	case CNSAllocatedNamespace:
		return "ALLOCATED_NS"
	case CNSNamespaceControllerList:
		return "NS_CTRL_LIST"
	case CNSControllerList:
		return "CTRL_LIST"
	case CNSPrimaryControllerCaps:
		return "PRIMARY_CTRL_CAP"
	case CNSSecondaryControllerList:
		return "SECONDARY_CTRL_LIST"
	case CNSNamespaceGranularity:
		return "NS_GRANULARITY"
	case CNSUUIDList:
		return "UUID_LIST"
	default:
		return "UNKNOWN"
	}
}

// LogID is a log page identifier.
type LogID uint8

const (
	LogErrorInfo        LogID = 0x01
	LogSMART            LogID = 0x02
	LogFirmwareSlot     LogID = 0x03
	LogChangedNamespace LogID = 0x04
	LogCommandEffects   LogID = 0x05
	LogDeviceSelfTest   LogID = 0x06
	LogTelemetryHost    LogID = 0x07
	LogTelemetryCtrl    LogID = 0x08
	LogEnduranceGroup   LogID = 0x09
	LogSanitize         LogID = 0x81
)

// String returns the log page name.
func (l LogID) String() string {
	switch l {
	case LogErrorInfo:
		return "ERROR"
	case LogSMART:
		return "SMART"
	case LogFirmwareSlot:
		return "FW_SLOT"
	case LogChangedNamespace:
		return "CHANGED_NS"
	case LogCommandEffects:
		return "CMD_EFFECTS"
	case LogDeviceSelfTest:
		return "DEVICE_SELF_TEST"
	case LogTelemetryHost:
		return "TELEMETRY_HOST"
	case LogTelemetryCtrl:
		return "TELEMETRY_CTRL"
	case LogEnduranceGroup:
		return "ENDURANCE_GROUP"
	case LogSanitize:
		return "SANITIZE"
	default:
		return "UNKNOWN"
	}
}

// DataType is an NVMe-MI Read Data structure type (DTYP).
type DataType uint8

const (
	DataTypeSubsystemInfo     DataType = 0x00
	DataTypePortInfo          DataType = 0x01
	DataTypeControllerList    DataType = 0x02
	DataTypeControllerInfo    DataType = 0x03
	DataTypeOptionalCommands  DataType = 0x04
	DataTypeMEBSupportCommand DataType = 0x05
)

// ReadDataCDW0 builds the request dword 0 of an NVMe-MI Read Data command.
//
//	bits 31:24  dtyp
//	bits 23:16  port id
//	bits 15:0   controller id
func ReadDataCDW0(dtyp DataType, portID uint8, ctrlID uint16) uint32 {
	return uint32(dtyp)<<24 | uint32(portID)<<16 | uint32(ctrlID)
}
