package mi

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
)

// RootConfig configures a Root.
type RootConfig struct {
	// Logger for operational logging. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures decoded messages, chunks and state changes
	// (optional).
	ProtocolLogger log.Logger
}

// Root is the logging context shared by the Endpoints opened through it.
// It owns those Endpoints; Close closes them all.
type Root struct {
	logger   *slog.Logger
	protocol log.Logger

	mu        sync.Mutex
	endpoints map[*Endpoint]struct{}
	closed    bool
}

// NewRoot creates a Root.
func NewRoot(config RootConfig) *Root {
	return &Root{
		logger:    config.Logger,
		protocol:  log.OrNoop(config.ProtocolLogger),
		endpoints: make(map[*Endpoint]struct{}),
	}
}

// debugLog logs a debug message if logging is enabled.
func (r *Root) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// infoLog logs an info message if logging is enabled.
func (r *Root) infoLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

// Open creates an Endpoint on port. The Endpoint takes ownership of port and
// closes it on Close. No exchange is made.
func (r *Root) Open(port transport.Port, config EndpointConfig) (*Endpoint, error) {
	if port == nil {
		return nil, invalidArgument("nil port")
	}

	maxMsg := config.MaxMessageSize
	if maxMsg <= 0 {
		maxMsg = DefaultMaxMessageSize
		if l, ok := port.(transport.MessageSizeLimiter); ok && l.MaxMessageSize() > 0 {
			maxMsg = l.MaxMessageSize()
		}
	}
	if err := checkMaxMessageSize(maxMsg); err != nil {
		return nil, err
	}

	ep := newEndpoint(r, port, config.Address, maxMsg)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrInvalidHandle
	}
	r.endpoints[ep] = struct{}{}
	r.mu.Unlock()

	r.infoLog("endpoint opened", "endpoint", ep.id, "address", ep.address, "max_message_size", maxMsg)
	r.logState(ep, log.StateEntityEndpoint, "", EndpointOpen.String(), "", nil)
	return ep, nil
}

// Endpoints returns the open endpoints.
func (r *Root) Endpoints() []*Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := make([]*Endpoint, 0, len(r.endpoints))
	for ep := range r.endpoints {
		eps = append(eps, ep)
	}
	return eps
}

// Close closes every open Endpoint. Further Opens fail with
// ErrInvalidHandle. It returns the joined port close errors.
func (r *Root) Close() error {
	r.mu.Lock()
	r.closed = true
	eps := make([]*Endpoint, 0, len(r.endpoints))
	for ep := range r.endpoints {
		eps = append(eps, ep)
	}
	r.mu.Unlock()

	var errs []error
	for _, ep := range eps {
		if err := ep.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Root) detach(ep *Endpoint) {
	r.mu.Lock()
	delete(r.endpoints, ep)
	r.mu.Unlock()
}

// logState emits a state change event for an endpoint or controller.
func (r *Root) logState(ep *Endpoint, entity log.StateEntity, oldState, newState, reason string, ctrlID *uint16) {
	r.protocol.Log(log.Event{
		Timestamp:  time.Now(),
		EndpointID: ep.id,
		Layer:      log.LayerEngine,
		Category:   log.CategoryState,
		Address:    ep.address,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
			CtrlID:   ctrlID,
		},
	})
}
