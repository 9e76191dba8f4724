// Package commands implements the nvme-mi-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	CtrlID    *uint16
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		CtrlID:    f.CtrlID,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [ep:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [ep:%s] %-3s %s %s\n",
		ts, shortenID(event.EndpointID), event.Direction.String(), event.Layer.String(), eventLabel(event))

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Chunk != nil:
		formatChunkDetails(w, event.Chunk)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventLabel names the event payload, e.g. "Admin Request".
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Class.String() + " " + event.Message.Role.String()
	case event.Chunk != nil:
		return "Chunk"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of an endpoint ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// opcodeName names an MI or Admin opcode.
func opcodeName(class wire.MessageClass, op uint8) string {
	if class == wire.ClassAdmin {
		return nvme.AdminOpName(op)
	}
	return wire.MIOpcode(op).String()
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Opcode != nil {
		fmt.Fprintf(w, "  Opcode: %s (0x%02x)\n", opcodeName(msg.Class, *msg.Opcode), *msg.Opcode)
	}
	if msg.CtrlID != nil {
		fmt.Fprintf(w, "  Controller: %d\n", *msg.CtrlID)
	}
	if msg.DOFF != nil || msg.DLEN != nil {
		var doff, dlen uint32
		if msg.DOFF != nil {
			doff = *msg.DOFF
		}
		if msg.DLEN != nil {
			dlen = *msg.DLEN
		}
		fmt.Fprintf(w, "  Window: doff=%d dlen=%d\n", doff, dlen)
	}
	if msg.Status != nil {
		fmt.Fprintf(w, "  Status: %s (0x%02x)\n", msg.Status.String(), uint8(*msg.Status))
	}
	if msg.NVMeStatus != nil && *msg.NVMeStatus != 0 {
		fmt.Fprintf(w, "  NVMe Status: 0x%04x\n", *msg.NVMeStatus)
	}
	if msg.DataLen > 0 {
		fmt.Fprintf(w, "  Data: %d bytes\n", msg.DataLen)
	}
	if msg.Latency != nil {
		fmt.Fprintf(w, "  Latency: %s\n", formatDuration(*msg.Latency))
	}
}

func formatChunkDetails(w io.Writer, c *log.ChunkEvent) {
	fmt.Fprintf(w, "  %s #%d offset=%d requested=%d returned=%d", c.Command, c.Index, c.Offset, c.Requested, c.Returned)
	switch {
	case c.Final && c.Short():
		fmt.Fprint(w, " (short, final)")
	case c.Final:
		fmt.Fprint(w, " (final)")
	}
	fmt.Fprintln(w)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s", sc.Entity.String())
	if sc.CtrlID != nil {
		fmt.Fprintf(w, " %d", *sc.CtrlID)
	}
	fmt.Fprintln(w)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "engine":
		return log.LayerEngine, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or engine)", s)
	}
}

// ParseDirectionFlag parses a direction string (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "chunk":
		return log.CategoryChunk, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, chunk, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
