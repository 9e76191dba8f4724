package wire

import "fmt"

// Status represents an NVMe-MI response message status code.
type Status uint8

const (
	// StatusSuccess indicates the command completed successfully.
	StatusSuccess Status = 0x00

	// StatusMoreProcessingRequired indicates the response is not yet complete.
	StatusMoreProcessingRequired Status = 0x01

	// StatusInternalError indicates an internal management endpoint error.
	StatusInternalError Status = 0x02

	// StatusInvalidOpcode indicates an unsupported command opcode.
	StatusInvalidOpcode Status = 0x03

	// StatusInvalidParameter indicates a parameter is invalid.
	StatusInvalidParameter Status = 0x04

	// StatusInvalidCommandSize indicates the request message size is invalid.
	StatusInvalidCommandSize Status = 0x05

	// StatusInvalidInputDataSize indicates the request data size is invalid.
	StatusInvalidInputDataSize Status = 0x06

	// StatusAccessDenied indicates the command is prohibited.
	StatusAccessDenied Status = 0x07

	// StatusVPDUpdatesExceeded indicates the VPD write limit was reached.
	StatusVPDUpdatesExceeded Status = 0x20

	// StatusPCIeInaccessible indicates the PCIe functionality is unavailable.
	StatusPCIeInaccessible Status = 0x21

	// StatusMEBSanitized indicates the management endpoint buffer was cleared
	// by a sanitize operation.
	StatusMEBSanitized Status = 0x22

	// StatusEnclosureServicesFailure indicates an enclosure services failure.
	StatusEnclosureServicesFailure Status = 0x23

	// StatusSanitizeInProgress indicates a sanitize operation is in progress.
	StatusSanitizeInProgress Status = 0x2a
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusMoreProcessingRequired:
		return "MORE_PROCESSING_REQUIRED"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusInvalidOpcode:
		return "INVALID_OPCODE"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusInvalidCommandSize:
		return "INVALID_COMMAND_SIZE"
	case StatusInvalidInputDataSize:
		return "INVALID_INPUT_DATA_SIZE"
	case StatusAccessDenied:
		return "ACCESS_DENIED"
	case StatusVPDUpdatesExceeded:
		return "VPD_UPDATES_EXCEEDED"
	case StatusPCIeInaccessible:
		return "PCIE_INACCESSIBLE"
	case StatusMEBSanitized:
		return "MEB_SANITIZED"
	case StatusEnclosureServicesFailure:
		return "ENCLOSURE_SERVICES_FAILURE"
	case StatusSanitizeInProgress:
		return "SANITIZE_IN_PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// StatusKind tells which status field a StatusError was taken from.
type StatusKind uint8

const (
	// StatusKindMI is the NVMe-MI response message status byte.
	StatusKindMI StatusKind = 0
	// StatusKindNVMe is the NVMe completion status relayed in an Admin
	// response (completion dword 3, bits 31:17).
	StatusKindNVMe StatusKind = 1
)

// String returns the status kind name.
func (k StatusKind) String() string {
	switch k {
	case StatusKindMI:
		return "MI"
	case StatusKindNVMe:
		return "NVME"
	default:
		return "UNKNOWN"
	}
}

// StatusError reports a command-level failure. Code is the raw status value.
type StatusError struct {
	Kind StatusKind
	Code uint16
}

func (e *StatusError) Error() string {
	if e.Kind == StatusKindNVMe {
		return fmt.Sprintf("nvme status 0x%04x (sct %d, sc 0x%02x)", e.Code, (e.Code>>8)&0x7, e.Code&0xff)
	}
	return fmt.Sprintf("mi status %s (0x%02x)", Status(e.Code), e.Code)
}

// MIStatus returns the MI status when Kind is StatusKindMI.
func (e *StatusError) MIStatus() Status {
	return Status(e.Code)
}
