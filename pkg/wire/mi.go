package wire

import "encoding/binary"

// MIOpcode is an NVMe-MI command opcode.
type MIOpcode uint8

const (
	// MIOpReadData reads an NVMe-MI data structure.
	MIOpReadData MIOpcode = 0x00

	// MIOpSubsystemHealthStatusPoll reads the NVM subsystem health status.
	MIOpSubsystemHealthStatusPoll MIOpcode = 0x01

	// MIOpControllerHealthStatusPoll reads controller health status changes.
	MIOpControllerHealthStatusPoll MIOpcode = 0x02

	// MIOpConfigurationSet sets an NVMe-MI configuration.
	MIOpConfigurationSet MIOpcode = 0x03

	// MIOpConfigurationGet reads an NVMe-MI configuration.
	MIOpConfigurationGet MIOpcode = 0x04
)

// String returns the opcode name.
func (o MIOpcode) String() string {
	switch o {
	case MIOpReadData:
		return "READ_MI_DATA"
	case MIOpSubsystemHealthStatusPoll:
		return "SUBSYSTEM_HEALTH_STATUS_POLL"
	case MIOpControllerHealthStatusPoll:
		return "CONTROLLER_HEALTH_STATUS_POLL"
	case MIOpConfigurationSet:
		return "CONFIGURATION_SET"
	case MIOpConfigurationGet:
		return "CONFIGURATION_GET"
	default:
		return "UNKNOWN"
	}
}

// MIRequest is an MI command request header.
//
//	offset  size  field
//	0       4     common header
//	4       1     opcode
//	5       3     reserved
//	8       4     cdw0
//	12      4     cdw1
type MIRequest struct {
	Header Header
	Opcode MIOpcode
	CDW0   uint32
	CDW1   uint32
}

// NewMIRequest builds an MI request tagged as an MI-class request in slot 0.
func NewMIRequest(opcode MIOpcode, cdw0, cdw1 uint32) *MIRequest {
	return &MIRequest{
		Header: NewHeader(ClassMI, RoleRequest, 0),
		Opcode: opcode,
		CDW0:   cdw0,
		CDW1:   cdw1,
	}
}

// Encode returns the wire form of the request.
func (r *MIRequest) Encode() []byte {
	b := make([]byte, MIRequestHeaderSize)
	r.Header.put(b)
	b[4] = uint8(r.Opcode)
	binary.LittleEndian.PutUint32(b[8:12], r.CDW0)
	binary.LittleEndian.PutUint32(b[12:16], r.CDW1)
	return b
}

// EncodeMIRequest encodes an MI request for the given opcode and control dwords.
func EncodeMIRequest(opcode MIOpcode, cdw0, cdw1 uint32) []byte {
	return NewMIRequest(opcode, cdw0, cdw1).Encode()
}

// DecodeMIRequest decodes an MI request header. Any bytes beyond the header
// are returned as request data.
func DecodeMIRequest(b []byte) (*MIRequest, []byte, error) {
	if len(b) < MIRequestHeaderSize {
		return nil, nil, malformed("MI request length %d shorter than header (%d)", len(b), MIRequestHeaderSize)
	}
	req := &MIRequest{
		Header: readHeader(b),
		Opcode: MIOpcode(b[4]),
		CDW0:   binary.LittleEndian.Uint32(b[8:12]),
		CDW1:   binary.LittleEndian.Uint32(b[12:16]),
	}
	return req, b[MIRequestHeaderSize:], nil
}

// MIResponse is an MI command response.
//
//	offset  size  field
//	0       4     common header
//	4       1     status
//	5       3     nmresp (response-specific)
//	8       -     data
type MIResponse struct {
	Header Header
	Status Status
	NMResp [3]byte
	Data   []byte
}

// Encode returns the wire form of the response header followed by its data.
func (r *MIResponse) Encode() []byte {
	b := make([]byte, MIResponseHeaderSize+len(r.Data))
	r.Header.put(b)
	b[4] = uint8(r.Status)
	copy(b[5:8], r.NMResp[:])
	copy(b[MIResponseHeaderSize:], r.Data)
	return b
}

// DecodeMIResponse decodes an MI response and checks it answers req.
func DecodeMIResponse(b []byte, req Header) (*MIResponse, error) {
	if len(b) < MIResponseHeaderSize {
		return nil, malformed("MI response length %d shorter than header (%d)", len(b), MIResponseHeaderSize)
	}
	hdr := readHeader(b)
	if err := checkResponse(hdr, req); err != nil {
		return nil, err
	}
	resp := &MIResponse{
		Header: hdr,
		Status: Status(b[4]),
		Data:   b[MIResponseHeaderSize:],
	}
	copy(resp.NMResp[:], b[5:8])
	return resp, nil
}

// Err returns a *StatusError for a non-zero status, or nil.
func (r *MIResponse) Err() error {
	if r.Status.IsSuccess() {
		return nil
	}
	return &StatusError{Kind: StatusKindMI, Code: uint16(r.Status)}
}
