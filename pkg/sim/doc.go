// Package sim provides an in-memory NVMe-MI management endpoint.
//
// Endpoint answers MI Read Data, Subsystem Health Status Poll and the relayed
// Admin commands Identify, Get Log Page, Security Send and Security Receive
// for a configurable subsystem. It implements transport.Handler, so it can be
// served over TCP by transport.Server or used in-process through Port.
//
// Faults can be injected per Admin exchange to exercise error and short
// transfer handling:
//
//	ep := sim.NewEndpoint(sim.DefaultConfig())
//	ep.FailAt(2, wire.StatusInternalError) // third Admin exchange fails
//	ep.ShortAt(1, 100)                     // second returns 100 bytes
package sim
