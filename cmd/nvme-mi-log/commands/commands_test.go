package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// createTestLogFile writes events to a new .mlog file.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

// sessionEvents is one identify exchange split into two chunks.
func sessionEvents() []log.Event {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	op := nvme.AdminOpIdentify
	ctrl := uint16(1)
	dlen := uint32(64)
	ok := wire.StatusSuccess
	nvmeOK := uint16(0)
	latency := 250 * time.Microsecond
	failed := wire.StatusInternalError

	return []log.Event{
		{
			Timestamp: ts, EndpointID: "5c0ffee0-aaaa", Address: "10.0.0.5:7000",
			Layer: log.LayerEngine, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityEndpoint, NewState: "OPEN"},
		},
		{
			Timestamp: ts.Add(time.Millisecond), EndpointID: "5c0ffee0-aaaa", Address: "10.0.0.5:7000",
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Class: wire.ClassAdmin, Role: wire.RoleRequest, Opcode: &op, CtrlID: &ctrl, DLEN: &dlen},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond), EndpointID: "5c0ffee0-aaaa", Address: "10.0.0.5:7000",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Class: wire.ClassAdmin, Role: wire.RoleResponse, Status: &ok, NVMeStatus: &nvmeOK, DataLen: 64, Latency: &latency},
		},
		{
			Timestamp: ts.Add(3 * time.Millisecond), EndpointID: "5c0ffee0-aaaa", Address: "10.0.0.5:7000",
			Layer: log.LayerEngine, Category: log.CategoryChunk,
			Chunk: &log.ChunkEvent{Command: "IDENTIFY", Index: 0, Requested: 64, Returned: 64},
		},
		{
			Timestamp: ts.Add(4 * time.Millisecond), EndpointID: "5c0ffee0-aaaa", Address: "10.0.0.5:7000",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Class: wire.ClassAdmin, Role: wire.RoleResponse, Status: &failed},
		},
		{
			Timestamp: ts.Add(5 * time.Millisecond), EndpointID: "5c0ffee0-aaaa", Address: "10.0.0.5:7000",
			Layer: log.LayerEngine, Category: log.CategoryChunk,
			Chunk: &log.ChunkEvent{Command: "IDENTIFY", Index: 1, Offset: 64, Requested: 64, Returned: 0, Final: true},
		},
		{
			Timestamp: ts.Add(6 * time.Millisecond), EndpointID: "d00dfeed-bbbb", Address: "10.0.0.6:7000",
			Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection refused", Context: "dial"},
		},
	}
}

func TestRunView(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[ep:5c0ffee0] OUT WIRE ADMIN REQUEST",
		"Opcode: IDENTIFY (0x06)",
		"Controller: 1",
		"Window: doff=0 dlen=64",
		"Latency: 250.000us",
		"IDENTIFY #1 offset=64 requested=64 returned=0 (short, final)",
		"-> OPEN",
		"Message: connection refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRunViewFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	cat := log.CategoryChunk

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "Chunk\n"); got != 2 {
		t.Errorf("chunk events = %d, want 2", got)
	}
	if strings.Contains(buf.String(), "ADMIN") {
		t.Error("filtered output contains message events")
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 7 {
		t.Fatalf("lines = %d, want 7", len(lines))
	}
	var e log.Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if e.Message == nil || e.Message.CtrlID == nil || *e.Message.CtrlID != 1 {
		t.Errorf("unexpected message %+v", e.Message)
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("rows = %d, want 8", len(rows))
	}
	req := rows[2]
	if req[7] != "IDENTIFY" || req[8] != "1" {
		t.Errorf("request row = %v", req)
	}
	if rows[5][9] != wire.StatusInternalError.String() {
		t.Errorf("status column = %q", rows[5][9])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.mlog")

	n, err := RunFilter(path, FilterOptions{Output: out, CtrlID: "1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("filtered %d events, want 1", n)
	}

	n, err = RunFilter(path, FilterOptions{Output: filepath.Join(t.TempDir(), "b.mlog"), Address: "10.0.0.6:7000"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("filtered %d events, want 1", n)
	}
}

func TestFilterOptionsErrors(t *testing.T) {
	tests := []FilterOptions{
		{CtrlID: "x"},
		{CtrlID: "70000"},
		{TimeStart: "yesterday"},
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "snapshot"},
	}
	for _, opts := range tests {
		if _, err := opts.Filter(); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestRunStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total Events: 7",
		"ENGINE:",
		"CHUNK:",
		"Endpoints: 2",
		"Address: 10.0.0.5:7000",
		"Requests: 1 (1 failed, avg latency 250.000us)",
		"Chunks: 2 (1 short)",
		"Errors: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}
