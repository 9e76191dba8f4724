package nvme

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	smart "github.com/anatol/smart.go"
	"github.com/google/uuid"
)

// ControllerIdentity is a decoded Identify Controller data structure.
type ControllerIdentity struct {
	*smart.NvmeIdentController

	VendorID         uint16
	SerialNumber     string
	ModelNumber      string
	FirmwareRevision string
	ControllerID     uint16
	Version          uint32
}

// VersionString returns the NVMe version as "major.minor.tertiary".
func (c *ControllerIdentity) VersionString() string {
	return versionString(c.Version)
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16, v>>8&0xff, v&0xff)
}

// ParseIdentifyController decodes Identify Controller data (CNS 0x01).
func ParseIdentifyController(b []byte) (*ControllerIdentity, error) {
	if len(b) < IdentifyDataSize {
		return nil, short("identify controller", len(b), IdentifyDataSize)
	}
	var id smart.NvmeIdentController
	if err := binary.Read(bytes.NewReader(b[:IdentifyDataSize]), binary.LittleEndian, &id); err != nil {
		return nil, err
	}
	return &ControllerIdentity{
		NvmeIdentController: &id,
		VendorID:            id.VendorID,
		SerialNumber:        trimASCII([]byte(id.SerialNumber())),
		ModelNumber:         trimASCII([]byte(id.ModelNumber())),
		FirmwareRevision:    trimASCII([]byte(id.FirmwareRev())),
		ControllerID:        id.Cntlid,
		Version:             id.Ver,
	}, nil
}

// NamespaceIdentity is the subset of Identify Namespace data (CNS 0x00)
// needed to size a namespace.
type NamespaceIdentity struct {
	Size        uint64 // nsze, in logical blocks
	Capacity    uint64 // ncap
	Utilization uint64 // nuse
	NumFormats  int    // nlbaf + 1
	FormatIndex int    // active LBA format
	LBADataSize uint32 // bytes per logical block of the active format
}

// ParseIdentifyNamespace decodes Identify Namespace data.
func ParseIdentifyNamespace(b []byte) (*NamespaceIdentity, error) {
	if len(b) < IdentifyDataSize {
		return nil, short("identify namespace", len(b), IdentifyDataSize)
	}
	le := binary.LittleEndian
	ns := &NamespaceIdentity{
		Size:        le.Uint64(b[0:8]),
		Capacity:    le.Uint64(b[8:16]),
		Utilization: le.Uint64(b[16:24]),
		NumFormats:  int(b[25]) + 1,
		// flbas bits 3:0, extended by bits 6:5.
		FormatIndex: int(b[26]&0x0f) | int(b[26]>>5&0x03)<<4,
	}
	if ns.FormatIndex < 64 {
		// lbaf[i]: ms (le16), lbads, rp; lbads is a power of two.
		lbads := b[128+4*ns.FormatIndex+2]
		if lbads > 0 && lbads < 32 {
			ns.LBADataSize = 1 << lbads
		}
	}
	return ns, nil
}

// ParseNamespaceList decodes an active namespace list (CNS 0x02). The list
// ends at the first zero identifier.
func ParseNamespaceList(b []byte) []uint32 {
	var ids []uint32
	for off := 0; off+4 <= len(b); off += 4 {
		id := binary.LittleEndian.Uint32(b[off:])
		if id == 0 {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// UUIDListEntry is one entry of the Identify UUID List.
type UUIDListEntry struct {
	// Index is the UUID index selecting this entry in commands (1-based).
	Index       uint8
	Association uint8
	UUID        uuid.UUID
}

// MaxUUIDListEntries is the capacity of the Identify UUID List.
const MaxUUIDListEntries = 127

const uuidListEntrySize = 32

// ParseUUIDList decodes Identify UUID List data (CNS 0x17). The list ends at
// the first all-zero entry.
func ParseUUIDList(b []byte) ([]UUIDListEntry, error) {
	if len(b) < IdentifyDataSize {
		return nil, short("uuid list", len(b), IdentifyDataSize)
	}
	var entries []UUIDListEntry
	for i := 0; i < MaxUUIDListEntries; i++ {
		e := b[uuidListEntrySize*(i+1) : uuidListEntrySize*(i+2)]
		u, err := uuid.FromBytes(e[16:32])
		if err != nil {
			return nil, err
		}
		if e[0] == 0 && u == uuid.Nil {
			break
		}
		entries = append(entries, UUIDListEntry{
			Index:       uint8(i + 1),
			Association: e[0] & 0x03,
			UUID:        u,
		})
	}
	return entries, nil
}

// EncodeUUIDList builds Identify UUID List data from entries; Index is
// ignored and implied by position.
func EncodeUUIDList(entries []UUIDListEntry) []byte {
	b := make([]byte, IdentifyDataSize)
	for i, e := range entries {
		if i >= MaxUUIDListEntries {
			break
		}
		off := uuidListEntrySize * (i + 1)
		b[off] = e.Association & 0x03
		copy(b[off+16:off+32], e.UUID[:])
	}
	return b
}

func trimASCII(b []byte) string {
	return strings.TrimRight(string(bytes.TrimRight(b, "\x00")), " ")
}

// ControllerTemplate holds the Identify Controller fields a simulated
// controller reports.
type ControllerTemplate struct {
	VendorID         uint16
	SerialNumber     string
	ModelNumber      string
	FirmwareRevision string
	ControllerID     uint16
	Version          uint32
}

// Encode builds 4096-byte Identify Controller data. String fields are
// space-padded as the identify format requires.
func (t ControllerTemplate) Encode() []byte {
	id := smart.NvmeIdentController{
		VendorID: t.VendorID,
		Ssvid:    t.VendorID,
		Cntlid:   t.ControllerID,
		Ver:      t.Version,
	}
	putASCII(id.SerialNumberRaw[:], t.SerialNumber)
	putASCII(id.ModelNumberRaw[:], t.ModelNumber)
	putASCII(id.FirmwareRevRaw[:], t.FirmwareRevision)
	return encodeFixed(&id, IdentifyDataSize)
}

// NamespaceTemplate holds the Identify Namespace fields a simulated namespace
// reports. It uses a single LBA format.
type NamespaceTemplate struct {
	Blocks      uint64
	LBADataSize uint32
}

// Encode builds 4096-byte Identify Namespace data.
func (t NamespaceTemplate) Encode() []byte {
	b := make([]byte, IdentifyDataSize)
	le := binary.LittleEndian
	le.PutUint64(b[0:8], t.Blocks)
	le.PutUint64(b[8:16], t.Blocks)
	le.PutUint64(b[16:24], t.Blocks)
	var lbads uint8
	for s := t.LBADataSize; s > 1; s >>= 1 {
		lbads++
	}
	b[128+2] = lbads
	return b
}

// encodeFixed writes a fixed-layout structure in little-endian order. The
// structures passed in contain only fixed-size fields.
func encodeFixed(v any, size int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic("nvme: encode fixed structure: " + err.Error())
	}
	return buf.Bytes()
}

func putASCII(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}
