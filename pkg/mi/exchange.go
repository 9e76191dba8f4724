package mi

import (
	"context"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// exchange sends one request message and returns the raw response.
func (e *Endpoint) exchange(ctx context.Context, req []byte, reqEvent *log.MessageEvent) ([]byte, time.Duration, error) {
	if err := e.checkOpen(); err != nil {
		return nil, 0, err
	}

	e.logMessage(log.DirectionOut, reqEvent)
	start := time.Now()
	resp, err := e.port.Exchange(ctx, req)
	latency := time.Since(start)
	if err != nil {
		err = portError(err)
		e.logError(log.LayerTransport, err, describe(reqEvent))
		return nil, latency, err
	}
	return resp, latency, nil
}

// miCommand runs one MI-class command and returns its decoded response.
// A non-zero response status is returned as a *wire.StatusError.
func (e *Endpoint) miCommand(ctx context.Context, opcode wire.MIOpcode, cdw0, cdw1 uint32) (*wire.MIResponse, error) {
	req := wire.NewMIRequest(opcode, cdw0, cdw1)
	op := uint8(opcode)

	raw, latency, err := e.exchange(ctx, req.Encode(), &log.MessageEvent{
		Class:  wire.ClassMI,
		Role:   wire.RoleRequest,
		Opcode: &op,
	})
	if err != nil {
		return nil, err
	}

	resp, err := wire.DecodeMIResponse(raw, req.Header)
	if err != nil {
		e.logError(log.LayerWire, err, "MI "+opcode.String())
		return nil, err
	}
	e.logMessage(log.DirectionIn, &log.MessageEvent{
		Class:   wire.ClassMI,
		Role:    wire.RoleResponse,
		Status:  &resp.Status,
		DataLen: len(resp.Data),
		Latency: &latency,
	})
	return resp, resp.Err()
}

func (e *Endpoint) logMessage(dir log.Direction, msg *log.MessageEvent) {
	if msg == nil {
		return
	}
	e.root.protocol.Log(log.Event{
		Timestamp:  time.Now(),
		EndpointID: e.id,
		Direction:  dir,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		Address:    e.address,
		Message:    msg,
	})
}

func (e *Endpoint) logError(layer log.Layer, err error, context string) {
	e.root.protocol.Log(log.Event{
		Timestamp:  time.Now(),
		EndpointID: e.id,
		Layer:      layer,
		Category:   log.CategoryError,
		Address:    e.address,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

// describe names the command a request event carries.
func describe(msg *log.MessageEvent) string {
	if msg == nil || msg.Opcode == nil {
		return ""
	}
	if msg.Class == wire.ClassAdmin {
		return "ADMIN " + nvme.AdminOpName(*msg.Opcode)
	}
	return msg.Class.String() + " " + wire.MIOpcode(*msg.Opcode).String()
}
