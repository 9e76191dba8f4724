package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Endpoints         map[string]*EndpointStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// EndpointStats holds statistics for a single endpoint session.
type EndpointStats struct {
	Address      string
	FirstSeen    time.Time
	LastSeen     time.Time
	Events       int
	Requests     int
	Failed       int // responses with MI or NVMe status
	Chunks       int
	ShortChunks  int
	TotalLatency time.Duration
	Responses    int
}

// AverageLatency returns the mean exchange latency.
func (s *EndpointStats) AverageLatency() time.Duration {
	if s.Responses == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Responses)
}

// Collect reads every event from r into a Stats.
func Collect(r *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Endpoints:         make(map[string]*EndpointStats),
	}

	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	ep, ok := s.Endpoints[event.EndpointID]
	if !ok {
		ep = &EndpointStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Endpoints[event.EndpointID] = ep
	}
	ep.Events++
	if event.Timestamp.After(ep.LastSeen) {
		ep.LastSeen = event.Timestamp
	}
	if ep.Address == "" {
		ep.Address = event.Address
	}

	switch {
	case event.Message != nil:
		m := event.Message
		if m.Role == wire.RoleRequest {
			ep.Requests++
			break
		}
		if (m.Status != nil && !m.Status.IsSuccess()) || (m.NVMeStatus != nil && *m.NVMeStatus != 0) {
			ep.Failed++
		}
		if m.Latency != nil {
			ep.Responses++
			ep.TotalLatency += *m.Latency
		}
	case event.Chunk != nil:
		ep.Chunks++
		if event.Chunk.Short() {
			ep.ShortChunks++
		}
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== NVMe-MI Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerEngine} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryChunk, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Endpoints: %d\n", len(stats.Endpoints))
	if len(stats.Endpoints) > 0 {
		type endpointInfo struct {
			id    string
			stats *EndpointStats
		}
		eps := make([]endpointInfo, 0, len(stats.Endpoints))
		for id, es := range stats.Endpoints {
			eps = append(eps, endpointInfo{id, es})
		}
		sort.Slice(eps, func(i, j int) bool {
			return eps[i].stats.FirstSeen.Before(eps[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, e := range eps {
			duration := e.stats.LastSeen.Sub(e.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(e.id), e.stats.Events, duration)
			if e.stats.Address != "" {
				fmt.Fprintf(w, "           Address: %s\n", e.stats.Address)
			}
			if e.stats.Requests > 0 {
				fmt.Fprintf(w, "           Requests: %d (%d failed, avg latency %s)\n",
					e.stats.Requests, e.stats.Failed, formatDuration(e.stats.AverageLatency()))
			}
			if e.stats.Chunks > 0 {
				fmt.Fprintf(w, "           Chunks: %d (%d short)\n", e.stats.Chunks, e.stats.ShortChunks)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
