package wire

import "encoding/binary"

// Admin request flags.
const (
	// AdminFlagDLENValid marks the DLEN field as valid.
	AdminFlagDLENValid uint8 = 0x01

	// AdminFlagDOFFValid marks the DOFF field as valid.
	AdminFlagDOFFValid uint8 = 0x02
)

// AdminRequest is an Admin command request header.
//
//	offset  size  field
//	0       4     common header
//	4       1     opcode
//	5       1     flags
//	6       2     ctrl_id
//	8       20    cdw1..cdw5
//	28      4     doff (data offset)
//	32      4     dlen (data length)
//	36      8     reserved
//	44      24    cdw10..cdw15
//
// DOFF and DLEN describe the data-phase window relative to the logical
// command's full payload, not to this message.
type AdminRequest struct {
	Header Header
	Opcode uint8
	Flags  uint8
	CtrlID uint16
	CDW1   uint32
	CDW2   uint32
	CDW3   uint32
	CDW4   uint32
	CDW5   uint32
	DOFF   uint32
	DLEN   uint32
	CDW10  uint32
	CDW11  uint32
	CDW12  uint32
	CDW13  uint32
	CDW14  uint32
	CDW15  uint32
}

// NewAdminRequest builds an Admin-class request for opcode addressed to ctrlID.
func NewAdminRequest(opcode uint8, ctrlID uint16) *AdminRequest {
	return &AdminRequest{
		Header: NewHeader(ClassAdmin, RoleRequest, 0),
		Opcode: opcode,
		CtrlID: ctrlID,
	}
}

// SetDataWindow sets DLEN/DOFF and their valid flags. A zero offset leaves
// DOFF unflagged.
func (r *AdminRequest) SetDataWindow(offset, length uint32) {
	r.DLEN = length
	r.Flags |= AdminFlagDLENValid
	r.DOFF = 0
	r.Flags &^= AdminFlagDOFFValid
	if offset != 0 {
		r.DOFF = offset
		r.Flags |= AdminFlagDOFFValid
	}
}

// Encode returns the wire form of the request header.
func (r *AdminRequest) Encode() []byte {
	return EncodeAdminRequest(r, nil)
}

// EncodeAdminRequest encodes the request header followed by request data.
func EncodeAdminRequest(r *AdminRequest, data []byte) []byte {
	b := make([]byte, AdminRequestHeaderSize+len(data))
	r.Header.put(b)
	b[4] = r.Opcode
	b[5] = r.Flags
	binary.LittleEndian.PutUint16(b[6:8], r.CtrlID)
	binary.LittleEndian.PutUint32(b[8:12], r.CDW1)
	binary.LittleEndian.PutUint32(b[12:16], r.CDW2)
	binary.LittleEndian.PutUint32(b[16:20], r.CDW3)
	binary.LittleEndian.PutUint32(b[20:24], r.CDW4)
	binary.LittleEndian.PutUint32(b[24:28], r.CDW5)
	binary.LittleEndian.PutUint32(b[28:32], r.DOFF)
	binary.LittleEndian.PutUint32(b[32:36], r.DLEN)
	// 36..44 reserved
	binary.LittleEndian.PutUint32(b[44:48], r.CDW10)
	binary.LittleEndian.PutUint32(b[48:52], r.CDW11)
	binary.LittleEndian.PutUint32(b[52:56], r.CDW12)
	binary.LittleEndian.PutUint32(b[56:60], r.CDW13)
	binary.LittleEndian.PutUint32(b[60:64], r.CDW14)
	binary.LittleEndian.PutUint32(b[64:68], r.CDW15)
	copy(b[AdminRequestHeaderSize:], data)
	return b
}

// DecodeAdminRequest decodes an Admin request header and returns any
// trailing request data.
func DecodeAdminRequest(b []byte) (*AdminRequest, []byte, error) {
	if len(b) < AdminRequestHeaderSize {
		return nil, nil, malformed("admin request length %d shorter than header (%d)", len(b), AdminRequestHeaderSize)
	}
	le := binary.LittleEndian
	req := &AdminRequest{
		Header: readHeader(b),
		Opcode: b[4],
		Flags:  b[5],
		CtrlID: le.Uint16(b[6:8]),
		CDW1:   le.Uint32(b[8:12]),
		CDW2:   le.Uint32(b[12:16]),
		CDW3:   le.Uint32(b[16:20]),
		CDW4:   le.Uint32(b[20:24]),
		CDW5:   le.Uint32(b[24:28]),
		DOFF:   le.Uint32(b[28:32]),
		DLEN:   le.Uint32(b[32:36]),
		CDW10:  le.Uint32(b[44:48]),
		CDW11:  le.Uint32(b[48:52]),
		CDW12:  le.Uint32(b[52:56]),
		CDW13:  le.Uint32(b[56:60]),
		CDW14:  le.Uint32(b[60:64]),
		CDW15:  le.Uint32(b[64:68]),
	}
	return req, b[AdminRequestHeaderSize:], nil
}

// AdminResponse is an Admin command response.
//
//	offset  size  field
//	0       4     common header
//	4       1     status
//	5       3     reserved
//	8       4     cdw0 (completion dword 0)
//	12      4     cdw1 (completion dword 1)
//	16      4     cdw3 (completion dword 3)
//	20      -     data
type AdminResponse struct {
	Header Header
	Status Status
	CDW0   uint32
	CDW1   uint32
	CDW3   uint32
	Data   []byte
}

// Encode returns the wire form of the response header followed by its data.
func (r *AdminResponse) Encode() []byte {
	b := make([]byte, AdminResponseHeaderSize+len(r.Data))
	r.Header.put(b)
	b[4] = uint8(r.Status)
	binary.LittleEndian.PutUint32(b[8:12], r.CDW0)
	binary.LittleEndian.PutUint32(b[12:16], r.CDW1)
	binary.LittleEndian.PutUint32(b[16:20], r.CDW3)
	copy(b[AdminResponseHeaderSize:], r.Data)
	return b
}

// DecodeAdminResponse decodes an Admin response and checks it answers req.
// A response shorter than the Admin header is accepted only when it carries
// a non-zero status.
func DecodeAdminResponse(b []byte, req Header) (*AdminResponse, error) {
	if len(b) < ErrorResponseSize {
		return nil, malformed("admin response length %d shorter than header (%d)", len(b), AdminResponseHeaderSize)
	}
	hdr := readHeader(b)
	if err := checkResponse(hdr, req); err != nil {
		return nil, err
	}
	status := Status(b[4])
	if len(b) < AdminResponseHeaderSize {
		if status.IsSuccess() {
			return nil, malformed("admin response length %d shorter than header (%d)", len(b), AdminResponseHeaderSize)
		}
		return &AdminResponse{Header: hdr, Status: status}, nil
	}
	le := binary.LittleEndian
	return &AdminResponse{
		Header: hdr,
		Status: status,
		CDW0:   le.Uint32(b[8:12]),
		CDW1:   le.Uint32(b[12:16]),
		CDW3:   le.Uint32(b[16:20]),
		Data:   b[AdminResponseHeaderSize:],
	}, nil
}

// NVMeStatus returns the relayed NVMe completion status field
// (completion dword 3, bits 31:17).
func (r *AdminResponse) NVMeStatus() uint16 {
	return uint16(r.CDW3 >> 17)
}

// Err returns a *StatusError when either the MI status or the relayed NVMe
// completion status is non-zero.
func (r *AdminResponse) Err() error {
	if !r.Status.IsSuccess() {
		return &StatusError{Kind: StatusKindMI, Code: uint16(r.Status)}
	}
	if sc := r.NVMeStatus(); sc != 0 {
		return &StatusError{Kind: StatusKindNVMe, Code: sc}
	}
	return nil
}
