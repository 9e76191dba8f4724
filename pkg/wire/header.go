package wire

import (
	"errors"
	"fmt"
)

// MessageTypeNVMe is the MCTP message type for NVMe-MI (0x04) with the
// integrity check bit (0x80) set.
const MessageTypeNVMe uint8 = 0x84

// Header sizes in bytes.
const (
	// CommonHeaderSize is the size of the header shared by all messages.
	CommonHeaderSize = 4

	// MIRequestHeaderSize is the size of an MI command request header.
	MIRequestHeaderSize = 16

	// MIResponseHeaderSize is the size of an MI command response header.
	MIResponseHeaderSize = 8

	// AdminRequestHeaderSize is the size of an Admin command request header.
	AdminRequestHeaderSize = 68

	// AdminResponseHeaderSize is the size of an Admin command response header.
	AdminResponseHeaderSize = 20

	// ErrorResponseSize is the shortest response accepted, provided it
	// carries a non-zero status.
	ErrorResponseSize = 8
)

// ErrMalformedResponse indicates a response that is too short or whose
// header fields are inconsistent with the outstanding request.
var ErrMalformedResponse = errors.New("malformed response")

// malformed wraps ErrMalformedResponse with detail.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// MessageClass is the NVMe-MI message type (NMIMT) carried in the NMP byte.
type MessageClass uint8

const (
	// ClassControl is the control primitive class.
	ClassControl MessageClass = 0
	// ClassMI is the management interface command class.
	ClassMI MessageClass = 1
	// ClassAdmin is the relayed NVMe Admin command class.
	ClassAdmin MessageClass = 2
	// ClassPCIe is the PCIe command class.
	ClassPCIe MessageClass = 4
)

// String returns the message class name.
func (c MessageClass) String() string {
	switch c {
	case ClassControl:
		return "CONTROL"
	case ClassMI:
		return "MI"
	case ClassAdmin:
		return "ADMIN"
	case ClassPCIe:
		return "PCIE"
	default:
		return "UNKNOWN"
	}
}

// Role is the request-or-response (ROR) bit.
type Role uint8

const (
	// RoleRequest marks a request message.
	RoleRequest Role = 0
	// RoleResponse marks a response message.
	RoleResponse Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleRequest:
		return "REQUEST"
	case RoleResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Header is the common NVMe-MI message header.
type Header struct {
	Type uint8
	NMP  uint8
	MEB  uint8
}

// NewHeader builds a header for the given class, role and command slot.
func NewHeader(class MessageClass, role Role, slot uint8) Header {
	return Header{
		Type: MessageTypeNVMe,
		NMP:  uint8(role&0x1)<<7 | uint8(class&0xf)<<3 | slot&0x1,
	}
}

// Class returns the NMIMT field.
func (h Header) Class() MessageClass {
	return MessageClass((h.NMP >> 3) & 0xf)
}

// Role returns the ROR field.
func (h Header) Role() Role {
	return Role(h.NMP >> 7)
}

// Slot returns the command slot identifier.
func (h Header) Slot() uint8 {
	return h.NMP & 0x1
}

// Response returns the header a well-formed response to h carries.
func (h Header) Response() Header {
	return Header{Type: h.Type, NMP: h.NMP | 0x80}
}

func (h Header) put(b []byte) {
	b[0] = h.Type
	b[1] = h.NMP
	b[2] = h.MEB
	b[3] = 0
}

func readHeader(b []byte) Header {
	return Header{Type: b[0], NMP: b[1], MEB: b[2]}
}

// PeekHeader decodes the common header of a message.
func PeekHeader(b []byte) (Header, error) {
	if len(b) < CommonHeaderSize {
		return Header{}, malformed("message length %d shorter than common header", len(b))
	}
	return readHeader(b), nil
}

// checkResponse validates a response header against the request header it
// answers.
func checkResponse(resp, req Header) error {
	if resp.Type != MessageTypeNVMe {
		return malformed("message type 0x%02x, want 0x%02x", resp.Type, MessageTypeNVMe)
	}
	if resp.Role() != RoleResponse {
		return malformed("ROR value in response indicates a request")
	}
	if resp.Class() != req.Class() {
		return malformed("message class %s, want %s", resp.Class(), req.Class())
	}
	if resp.Slot() != req.Slot() {
		return malformed("command slot mismatch: got %d, want %d", resp.Slot(), req.Slot())
	}
	return nil
}
