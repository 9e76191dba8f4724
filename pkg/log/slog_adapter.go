package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Events are written at Debug level under the message "nvme-mi".
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("endpoint_id", event.EndpointID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}

	// Add type-specific attributes
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.String("class", m.Class.String()),
			slog.String("role", m.Role.String()),
		)
		if m.Opcode != nil {
			attrs = append(attrs, slog.Uint64("opcode", uint64(*m.Opcode)))
		}
		if m.CtrlID != nil {
			attrs = append(attrs, slog.Uint64("ctrl_id", uint64(*m.CtrlID)))
		}
		if m.DOFF != nil {
			attrs = append(attrs, slog.Uint64("doff", uint64(*m.DOFF)))
		}
		if m.DLEN != nil {
			attrs = append(attrs, slog.Uint64("dlen", uint64(*m.DLEN)))
		}
		if m.Status != nil {
			attrs = append(attrs, slog.String("status", m.Status.String()))
		}
		if m.NVMeStatus != nil {
			attrs = append(attrs, slog.Uint64("nvme_status", uint64(*m.NVMeStatus)))
		}
		if m.DataLen != 0 {
			attrs = append(attrs, slog.Int("data_len", m.DataLen))
		}
		if m.Latency != nil {
			attrs = append(attrs, slog.Duration("latency", *m.Latency))
		}
	case event.Chunk != nil:
		attrs = append(attrs,
			slog.String("command", event.Chunk.Command),
			slog.Int("chunk", event.Chunk.Index),
			slog.Uint64("offset", uint64(event.Chunk.Offset)),
			slog.Uint64("requested", uint64(event.Chunk.Requested)),
			slog.Uint64("returned", uint64(event.Chunk.Returned)),
		)
		if event.Chunk.Final {
			attrs = append(attrs, slog.Bool("final", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.CtrlID != nil {
			attrs = append(attrs, slog.Uint64("ctrl_id", uint64(*event.StateChange.CtrlID)))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "nvme-mi", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
