package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, format, w)
}

func export(reader *log.Reader, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{
	"timestamp", "endpoint_id", "address", "direction", "layer", "category",
	"type", "opcode", "ctrl_id", "status", "data_len",
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var opcode, ctrlID, status, dataLen string
		switch {
		case event.Message != nil:
			m := event.Message
			if m.Opcode != nil {
				opcode = opcodeName(m.Class, *m.Opcode)
			}
			if m.CtrlID != nil {
				ctrlID = strconv.Itoa(int(*m.CtrlID))
			}
			if m.Status != nil {
				status = m.Status.String()
			}
			dataLen = strconv.Itoa(m.DataLen)
		case event.Frame != nil:
			dataLen = strconv.Itoa(event.Frame.Size)
		case event.Chunk != nil:
			opcode = event.Chunk.Command
			dataLen = strconv.Itoa(int(event.Chunk.Returned))
		case event.StateChange != nil && event.StateChange.CtrlID != nil:
			ctrlID = strconv.Itoa(int(*event.StateChange.CtrlID))
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.EndpointID,
			event.Address,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			eventLabel(event),
			opcode,
			ctrlID,
			status,
			dataLen,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
