// Package wire defines the binary wire format of NVMe-MI messages.
//
// Every NVMe-MI message starts with a 4-byte common header followed by a
// class-specific header and an optional data portion. All multi-byte integer
// fields are little-endian. Layouts are expressed as explicit byte offsets;
// nothing in this package depends on Go struct layout or padding.
//
// # Common Header
//
//	offset  size  field
//	0       1     type   MCTP message type, always 0x84 (NVMe-MI + IC bit)
//	1       1     nmp    ROR (bit 7) | NMIMT (bits 6:3) | CSI (bit 0)
//	2       1     meb    management endpoint buffer flag
//	3       1     reserved
//
// # Message Classes
//
// The NMIMT field selects the message class:
//   - Control (0): transport control primitives
//   - MI (1): management interface commands (MI Data Read, Health Status Poll)
//   - Admin (2): NVMe Admin commands relayed to a controller
//   - PCIe (4): PCIe configuration/memory access
//
// # Status
//
// Response decoders check header consistency against the request that was
// sent and report ErrMalformedResponse on mismatch. A non-zero status is
// mapped to a *StatusError carrying the raw code; this package does not
// interpret status codes beyond success or failure.
package wire
