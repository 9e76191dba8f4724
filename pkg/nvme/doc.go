// Package nvme defines the NVMe and NVMe-MI constants and data structures
// the management engine exchanges: Admin opcodes, Identify CNS values, log
// page identifiers, the NVMe-MI Read Data structures and the subsystem
// health status.
//
// Decoders validate only the length of the data they are given; field values
// are returned uninterpreted apart from convenience accessors. Structures
// shorter than their defined size fail with wire.ErrMalformedResponse.
package nvme
