package mi

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// DefaultMaxMessageSize is the message size assumed when neither the
// configuration nor the port supplies one: a full 4096-byte data chunk plus
// the Admin request header.
const DefaultMaxMessageSize = maxChunkSize + wire.AdminRequestHeaderSize

// MinMaxMessageSize is the smallest supported message size: an Admin
// request header plus one dword of data.
const MinMaxMessageSize = wire.AdminRequestHeaderSize + 4

// EndpointConfig configures an Endpoint.
type EndpointConfig struct {
	// Address is the transport address, recorded for logging only.
	Address string

	// MaxMessageSize is the largest NVMe-MI message the binding carries.
	// Zero uses the port's limit, else DefaultMaxMessageSize.
	MaxMessageSize int
}

// DefaultEndpointConfig returns an EndpointConfig that takes the message
// size from the port.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{}
}

// EndpointState is the lifecycle state of an Endpoint.
type EndpointState uint8

const (
	// EndpointOpen accepts commands.
	EndpointOpen EndpointState = iota
	// EndpointClosed rejects all commands. Terminal.
	EndpointClosed
)

// String returns the state name.
func (s EndpointState) String() string {
	switch s {
	case EndpointOpen:
		return "OPEN"
	case EndpointClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Endpoint is an NVMe-MI management endpoint reached through one port.
type Endpoint struct {
	root    *Root
	port    transport.Port
	id      string
	address string

	mu          sync.Mutex
	state       EndpointState
	maxMsg      int
	controllers map[*Controller]struct{}
	closeErr    error
}

func newEndpoint(root *Root, port transport.Port, address string, maxMsg int) *Endpoint {
	return &Endpoint{
		root:        root,
		port:        port,
		id:          uuid.New().String(),
		address:     address,
		maxMsg:      maxMsg,
		controllers: make(map[*Controller]struct{}),
	}
}

// ID returns the endpoint's session identifier, used in protocol logs.
func (e *Endpoint) ID() string {
	return e.id
}

// Address returns the configured transport address.
func (e *Endpoint) Address() string {
	return e.address
}

// State returns the current lifecycle state.
func (e *Endpoint) State() EndpointState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// MaxMessageSize returns the current maximum message size.
func (e *Endpoint) MaxMessageSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxMsg
}

// SetMaxMessageSize changes the maximum message size used to size chunks of
// later transfers.
func (e *Endpoint) SetMaxMessageSize(n int) error {
	if err := checkMaxMessageSize(n); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EndpointOpen {
		return ErrInvalidHandle
	}
	if n != e.maxMsg {
		e.root.debugLog("max message size changed", "endpoint", e.id, "old", e.maxMsg, "new", n)
		e.maxMsg = n
	}
	return nil
}

func checkMaxMessageSize(n int) error {
	if n < MinMaxMessageSize {
		return invalidArgument("max message size %d below %d", n, MinMaxMessageSize)
	}
	return nil
}

// Controller binds a session to controller id. No exchange is made; the id
// is not checked against the endpoint's controller list.
func (e *Endpoint) Controller(id uint16) (*Controller, error) {
	e.mu.Lock()
	if e.state != EndpointOpen {
		e.mu.Unlock()
		return nil, ErrInvalidHandle
	}
	c := &Controller{ep: e, id: id}
	e.controllers[c] = struct{}{}
	e.mu.Unlock()

	e.root.debugLog("controller bound", "endpoint", e.id, "ctrl_id", id)
	e.root.logState(e, log.StateEntityController, "", ControllerBound.String(), "", &id)
	return c, nil
}

// Controllers returns the bound controller sessions.
func (e *Endpoint) Controllers() []*Controller {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := make([]*Controller, 0, len(e.controllers))
	for c := range e.controllers {
		cs = append(cs, c)
	}
	return cs
}

// Close invalidates every controller session, closes the port and detaches
// the endpoint from its Root. Calling Close again returns the first result.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.state == EndpointClosed {
		err := e.closeErr
		e.mu.Unlock()
		return err
	}
	e.state = EndpointClosed
	ctrls := e.controllers
	e.controllers = nil
	e.mu.Unlock()

	for c := range ctrls {
		c.invalidate("endpoint closed")
	}

	err := e.port.Close()

	e.mu.Lock()
	e.closeErr = err
	e.mu.Unlock()

	e.root.detach(e)
	e.root.infoLog("endpoint closed", "endpoint", e.id, "address", e.address)
	e.root.logState(e, log.StateEntityEndpoint, EndpointOpen.String(), EndpointClosed.String(), "", nil)
	return err
}

// checkOpen returns ErrInvalidHandle unless the endpoint is open.
func (e *Endpoint) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EndpointOpen {
		return ErrInvalidHandle
	}
	return nil
}

func (e *Endpoint) release(c *Controller) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.controllers, c)
}
