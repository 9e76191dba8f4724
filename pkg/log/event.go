package log

import (
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// EndpointID identifies the endpoint session (UUID).
	EndpointID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Address is the transport address of the endpoint.
	Address string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded header)
	Chunk       *ChunkEvent       `cbor:"12,keyasint,omitempty"` // Chunking engine
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"` // Endpoint/controller state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the port layer (raw message bytes).
	LayerTransport Layer = 0
	// LayerWire is the message codec layer (decoded headers).
	LayerWire Layer = 1
	// LayerEngine is the command and chunking layer.
	LayerEngine Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request or response message.
	CategoryMessage Category = 0
	// CategoryChunk indicates one chunk of a multi-exchange transfer.
	CategoryChunk Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryChunk:
		return "CHUNK"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw message bytes at the transport layer.
type FrameEvent struct {
	// Size is the message size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw message bytes (may be truncated for large messages).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameData is the largest number of raw bytes kept in a FrameEvent.
const MaxFrameData = 4096

// NewFrameEvent captures msg, truncating the copy at MaxFrameData.
func NewFrameEvent(msg []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(msg)}
	data := msg
	if len(data) > MaxFrameData {
		data = data[:MaxFrameData]
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), data...)
	return fe
}

// MessageEvent captures a decoded message header at the wire layer.
type MessageEvent struct {
	// Class is the NVMe-MI message type (MI or Admin).
	Class wire.MessageClass `cbor:"1,keyasint"`

	// Role distinguishes request from response.
	Role wire.Role `cbor:"2,keyasint"`

	// Opcode is the MI or Admin opcode (requests only).
	Opcode *uint8 `cbor:"3,keyasint,omitempty"`

	// CtrlID is the target controller (Admin requests only).
	CtrlID *uint16 `cbor:"4,keyasint,omitempty"`

	// DOFF and DLEN describe the data window (Admin requests only).
	DOFF *uint32 `cbor:"5,keyasint,omitempty"`
	DLEN *uint32 `cbor:"6,keyasint,omitempty"`

	// Status is the response message status (responses only).
	Status *wire.Status `cbor:"7,keyasint,omitempty"`

	// NVMeStatus is the relayed completion status (Admin responses only).
	NVMeStatus *uint16 `cbor:"8,keyasint,omitempty"`

	// DataLen is the number of data bytes following the header.
	DataLen int `cbor:"9,keyasint,omitempty"`

	// Latency is the exchange round-trip time (responses only).
	// Stored as nanoseconds.
	Latency *time.Duration `cbor:"10,keyasint,omitempty"`
}

// ChunkEvent captures one exchange of a chunked transfer.
type ChunkEvent struct {
	// Command names the logical operation (e.g. "IDENTIFY").
	Command string `cbor:"1,keyasint"`

	// Index is the zero-based chunk number.
	Index int `cbor:"2,keyasint"`

	// Offset is the chunk's offset within the command's full payload.
	Offset uint32 `cbor:"3,keyasint"`

	// Requested is the chunk length asked for (or sent).
	Requested uint32 `cbor:"4,keyasint"`

	// Returned is the number of bytes actually transferred.
	Returned uint32 `cbor:"5,keyasint"`

	// Final marks the chunk that ended the transfer.
	Final bool `cbor:"6,keyasint,omitempty"`
}

// Short reports whether the chunk returned fewer bytes than requested.
func (c *ChunkEvent) Short() bool {
	return c.Returned < c.Requested
}

// StateChangeEvent captures endpoint, controller and connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// CtrlID is set for controller state changes.
	CtrlID *uint16 `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityEndpoint indicates an endpoint state change.
	StateEntityEndpoint StateEntity = 0
	// StateEntityController indicates a controller session state change.
	StateEntityController StateEntity = 1
	// StateEntityConnection indicates a transport connection state change.
	StateEntityConnection StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityEndpoint:
		return "ENDPOINT"
	case StateEntityController:
		return "CONTROLLER"
	case StateEntityConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the status code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
