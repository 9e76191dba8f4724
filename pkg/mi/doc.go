// Package mi implements the NVMe-MI management engine.
//
// A Root holds the logging context and owns the Endpoints opened through
// it. An Endpoint wraps one transport.Port and issues NVMe-MI commands
// (Read Data, Subsystem Health Status Poll) directly. A Controller is a
// session bound to one controller id on an Endpoint and issues relayed Admin
// commands (Identify, Get Log Page, Security Send/Receive), splitting
// payloads that exceed the endpoint's message size into several exchanges:
//
//	root := mi.NewRoot(mi.RootConfig{Logger: slog.Default()})
//	defer root.Close()
//
//	ep, err := root.Open(port, mi.DefaultEndpointConfig())
//	ctrl, err := ep.Controller(1)
//	id, err := ctrl.IdentifyController(ctx)
//
// Closing an Endpoint invalidates its Controllers; any later use of either
// fails with ErrInvalidHandle without touching the transport.
//
// Exchanges are strictly lock-step. An Endpoint and its Controllers must not
// be used from several goroutines at once; Close may be called from any
// goroutine. A running HealthMonitor counts as that single user.
package mi
