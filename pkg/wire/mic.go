package wire

import (
	"encoding/binary"
	"hash/crc32"
)

// MICSize is the size of the message integrity check trailer.
const MICSize = 4

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// MIC computes the CRC-32C message integrity check over msg.
func MIC(msg []byte) uint32 {
	return crc32.Checksum(msg, castagnoli)
}

// AppendMIC returns msg with its integrity check appended (little-endian).
func AppendMIC(msg []byte) []byte {
	return binary.LittleEndian.AppendUint32(msg, MIC(msg))
}

// VerifyMIC checks and strips the integrity check trailer.
func VerifyMIC(msg []byte) ([]byte, error) {
	if len(msg) < CommonHeaderSize+MICSize {
		return nil, malformed("message length %d too short for integrity check", len(msg))
	}
	body := msg[:len(msg)-MICSize]
	got := binary.LittleEndian.Uint32(msg[len(msg)-MICSize:])
	if want := MIC(body); got != want {
		return nil, malformed("integrity check mismatch: got 0x%08x, want 0x%08x", got, want)
	}
	return body, nil
}
