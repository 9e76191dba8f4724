// Package commands implements the nvme-mi CLI commands.
//
// Every command runs against an open mi.Endpoint and writes to the
// Session's output, so the same table serves one-shot invocations and the
// interactive shell.
package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/nvme-mi/nvme-mi-go/pkg/mi"
)

// ErrUsage is returned when a command's arguments are invalid. The usage
// has already been printed.
var ErrUsage = errors.New("usage error")

// Session is the state shared by commands.
type Session struct {
	Endpoint *mi.Endpoint
	Out      io.Writer

	// Logger for operational logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Command is one CLI command.
type Command struct {
	Name    string
	Summary string
	Args    string

	// Flags registers the command's flags. The returned function runs the
	// command once the flags are parsed.
	Flags func(fs *flag.FlagSet) func(ctx context.Context, s *Session, args []string) error
}

var registry = map[string]*Command{}

func register(c *Command) {
	registry[c.Name] = c
}

// Lookup returns the named command.
func Lookup(name string) (*Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// All returns the commands sorted by name.
func All() []*Command {
	cmds := make([]*Command, 0, len(registry))
	for _, c := range registry {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Usage writes the command summary table.
func Usage(w io.Writer) {
	for _, c := range All() {
		fmt.Fprintf(w, "  %-10s %s\n", c.Name, c.Summary)
	}
}

// Execute parses args for the named command and runs it.
func Execute(ctx context.Context, s *Session, name string, args []string) error {
	c, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}

	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(s.Out)
	fs.Usage = func() {
		fmt.Fprintf(s.Out, "%s - %s\n\nUsage:\n  %s %s\n", c.Name, c.Summary, c.Name, c.Args)
		if hasFlags(fs) {
			fmt.Fprintln(s.Out, "\nFlags:")
			fs.PrintDefaults()
		}
	}
	run := c.Flags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return ErrUsage
	}
	if err := run(ctx, s, fs.Args()); err != nil {
		if errors.Is(err, ErrUsage) {
			fs.Usage()
		}
		return err
	}
	return nil
}

func hasFlags(fs *flag.FlagSet) bool {
	n := 0
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n > 0
}

// usagef wraps ErrUsage with a message.
func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// withController binds controller id for the duration of fn.
func (s *Session) withController(id uint, fn func(*mi.Controller) error) error {
	if id > 0xffff {
		return usagef("controller id %d out of range", id)
	}
	ctrl, err := s.Endpoint.Controller(uint16(id))
	if err != nil {
		return err
	}
	defer ctrl.Close()
	return fn(ctrl)
}

// field writes one aligned "name: value" line.
func field(w io.Writer, name string, format string, args ...any) {
	fmt.Fprintf(w, "  %-22s %s\n", name+":", fmt.Sprintf(format, args...))
}

// commandNames lists the command names for shell completion.
func commandNames() []string {
	names := make([]string, 0, len(registry))
	for _, c := range All() {
		names = append(names, c.Name)
	}
	return names
}

func joinIDs[T ~uint16 | ~uint32](ids []T) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
