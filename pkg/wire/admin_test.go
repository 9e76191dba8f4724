package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestAdminRequestLayout(t *testing.T) {
	req := NewAdminRequest(0x06, 0x1234)
	req.CDW1 = 0x11111111
	req.CDW5 = 0x55555555
	req.CDW10 = 0xaaaaaaaa
	req.CDW15 = 0xffffffff
	req.SetDataWindow(0x200, 0x40)

	b := req.Encode()
	if len(b) != AdminRequestHeaderSize {
		t.Fatalf("length: got %d, want %d", len(b), AdminRequestHeaderSize)
	}

	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"type", uint32(b[0]), 0x84},
		{"nmp", uint32(b[1]), 0x10},
		{"opcode", uint32(b[4]), 0x06},
		{"flags", uint32(b[5]), 0x03},
		{"ctrl_id", uint32(le.Uint16(b[6:8])), 0x1234},
		{"cdw1", le.Uint32(b[8:12]), 0x11111111},
		{"cdw5", le.Uint32(b[24:28]), 0x55555555},
		{"doff", le.Uint32(b[28:32]), 0x200},
		{"dlen", le.Uint32(b[32:36]), 0x40},
		{"rsvd0", le.Uint32(b[36:40]), 0},
		{"rsvd1", le.Uint32(b[40:44]), 0},
		{"cdw10", le.Uint32(b[44:48]), 0xaaaaaaaa},
		{"cdw15", le.Uint32(b[64:68]), 0xffffffff},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got 0x%x, want 0x%x", c.name, c.got, c.want)
		}
	}
}

func TestAdminRequestDataWindow(t *testing.T) {
	tests := []struct {
		name      string
		offset    uint32
		length    uint32
		wantFlags uint8
		wantDOFF  uint32
	}{
		{"zero offset", 0, 64, AdminFlagDLENValid, 0},
		{"non-zero offset", 64, 64, AdminFlagDLENValid | AdminFlagDOFFValid, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewAdminRequest(0x02, 0)
			req.SetDataWindow(tt.offset, tt.length)
			if req.Flags != tt.wantFlags {
				t.Errorf("Flags: got 0x%02x, want 0x%02x", req.Flags, tt.wantFlags)
			}
			if req.DOFF != tt.wantDOFF {
				t.Errorf("DOFF: got %d, want %d", req.DOFF, tt.wantDOFF)
			}
			if req.DLEN != tt.length {
				t.Errorf("DLEN: got %d, want %d", req.DLEN, tt.length)
			}
		})
	}
}

func TestAdminRequestRoundTrip(t *testing.T) {
	req := NewAdminRequest(0x81, 7)
	req.CDW10 = 0x01020304
	req.CDW11 = 32
	req.SetDataWindow(32, 32)
	data := bytes.Repeat([]byte{0x5a}, 32)

	decoded, rest, err := DecodeAdminRequest(EncodeAdminRequest(req, data))
	if err != nil {
		t.Fatalf("DecodeAdminRequest failed: %v", err)
	}
	if *decoded != *req {
		t.Errorf("request mismatch:\n got %+v\nwant %+v", *decoded, *req)
	}
	if !bytes.Equal(rest, data) {
		t.Errorf("request data mismatch")
	}

	if _, _, err := DecodeAdminRequest(make([]byte, AdminRequestHeaderSize-1)); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse for short request, got %v", err)
	}
}

func TestDecodeAdminResponse(t *testing.T) {
	req := NewHeader(ClassAdmin, RoleRequest, 0)

	full := (&AdminResponse{
		Header: req.Response(),
		CDW0:   0xdeadbeef,
		CDW3:   0x0002 << 17,
		Data:   []byte{1, 2, 3, 4},
	}).Encode()

	shortErr := make([]byte, ErrorResponseSize)
	copy(shortErr, full[:4])
	shortErr[4] = uint8(StatusInvalidParameter)

	shortOK := make([]byte, 12)
	copy(shortOK, full[:4])

	tests := []struct {
		name          string
		msg           []byte
		wantMalformed bool
		wantStatus    Status
		wantData      int
	}{
		{"full response", full, false, StatusSuccess, 4},
		{"short error response", shortErr, false, StatusInvalidParameter, 0},
		{"short success response", shortOK, true, 0, 0},
		{"too short", full[:7], true, 0, 0},
		{"wrong class", (&AdminResponse{Header: NewHeader(ClassMI, RoleResponse, 0)}).Encode(), true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeAdminResponse(tt.msg, req)
			if tt.wantMalformed {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeAdminResponse failed: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status: got %v, want %v", resp.Status, tt.wantStatus)
			}
			if len(resp.Data) != tt.wantData {
				t.Errorf("Data length: got %d, want %d", len(resp.Data), tt.wantData)
			}
		})
	}
}

func TestAdminResponseErr(t *testing.T) {
	tests := []struct {
		name     string
		resp     AdminResponse
		wantKind StatusKind
		wantCode uint16
		wantNil  bool
	}{
		{"success", AdminResponse{}, 0, 0, true},
		{"mi status", AdminResponse{Status: StatusInternalError, CDW3: 1 << 17}, StatusKindMI, 0x02, false},
		{"nvme status", AdminResponse{CDW3: 0x4002 << 17}, StatusKindNVMe, 0x4002, false},
		{"phase bit only", AdminResponse{CDW3: 1 << 16}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Err()
			if tt.wantNil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if se.Kind != tt.wantKind || se.Code != tt.wantCode {
				t.Errorf("got %v/0x%x, want %v/0x%x", se.Kind, se.Code, tt.wantKind, tt.wantCode)
			}
		})
	}
}
