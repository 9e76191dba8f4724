// Package transport binds NVMe-MI messages to a carrier.
//
// The protocol engine only needs the Port contract: send one request
// message, receive one complete response message. This package provides
// that contract plus a reference binding over a byte stream, used by the
// simulator and the command line tools:
//
//	┌────────────────────────────────┐
//	│   NVMe-MI message              │
//	├────────────────────────────────┤
//	│   MIC (CRC-32C, optional)      │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   TCP / unix socket            │
//	└────────────────────────────────┘
//
// Real management binds (MCTP over SMBus or PCIe VDM) implement Port
// outside this module.
//
// # Stream ports
//
// StreamPort dials lazily on the first exchange and redials with
// exponential backoff after a broken exchange. An exchange is strictly
// lock-step: the response frame is read before Exchange returns.
//
// # Integrity check
//
// WithIntegrityCheck wraps a Port so that requests carry a trailing
// CRC-32C and responses are verified before being returned. The responder
// side uses IntegrityHandler.
package transport
