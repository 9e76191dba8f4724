package mi

import (
	"errors"
	"fmt"

	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// Engine errors.
var (
	// ErrInvalidHandle is returned by operations on a closed Endpoint or an
	// invalidated Controller.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrInvalidArgument is returned when a request is rejected before any
	// exchange.
	ErrInvalidArgument = errors.New("invalid argument")
)

// TransportError wraps a failure reported by the transport port, including
// context cancellation and deadlines.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

// Unwrap returns the port's error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// portError classifies an error returned by Port.Exchange. Integrity
// failures detected by the port keep their malformed-response kind.
func portError(err error) error {
	if errors.Is(err, wire.ErrMalformedResponse) {
		return err
	}
	return &TransportError{Err: err}
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
