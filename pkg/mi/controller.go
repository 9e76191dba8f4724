package mi

import (
	"sync"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
)

// ControllerState is the lifecycle state of a Controller session.
type ControllerState uint8

const (
	// ControllerBound accepts commands.
	ControllerBound ControllerState = iota
	// ControllerInvalidated rejects all commands. Terminal.
	ControllerInvalidated
)

// String returns the state name.
func (s ControllerState) String() string {
	switch s {
	case ControllerBound:
		return "BOUND"
	case ControllerInvalidated:
		return "INVALIDATED"
	default:
		return "UNKNOWN"
	}
}

// Controller is a session for one NVMe controller behind an Endpoint.
// It carries Admin commands over the endpoint's port.
type Controller struct {
	ep *Endpoint
	id uint16

	mu    sync.Mutex
	state ControllerState
}

// ID returns the controller identifier.
func (c *Controller) ID() uint16 {
	return c.id
}

// Endpoint returns the endpoint the session is bound to.
func (c *Controller) Endpoint() *Endpoint {
	return c.ep
}

// State returns the current lifecycle state.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close invalidates the session. The endpoint stays open. Idempotent.
func (c *Controller) Close() error {
	if c.invalidate("closed") {
		c.ep.release(c)
	}
	return nil
}

// invalidate moves the session to ControllerInvalidated and reports whether
// this call made the change.
func (c *Controller) invalidate(reason string) bool {
	c.mu.Lock()
	if c.state == ControllerInvalidated {
		c.mu.Unlock()
		return false
	}
	c.state = ControllerInvalidated
	c.mu.Unlock()

	id := c.id
	c.ep.root.debugLog("controller invalidated", "endpoint", c.ep.id, "ctrl_id", id, "reason", reason)
	c.ep.root.logState(c.ep, log.StateEntityController, ControllerBound.String(), ControllerInvalidated.String(), reason, &id)
	return true
}

// checkValid returns ErrInvalidHandle unless both the session and its
// endpoint are usable.
func (c *Controller) checkValid() error {
	c.mu.Lock()
	invalid := c.state != ControllerBound
	c.mu.Unlock()
	if invalid {
		return ErrInvalidHandle
	}
	return c.ep.checkOpen()
}
