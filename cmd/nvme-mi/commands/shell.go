package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Shell runs commands interactively against one session.
type Shell struct {
	session *Session
	rl      *readline.Instance
}

// NewShell creates a shell whose output goes through the readline
// instance so it does not clobber the prompt.
func NewShell(s *Session, prompt string) (*Shell, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(registry)+2)
	for _, name := range commandNames() {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("quit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s.Out = rl.Stdout()
	return &Shell{session: s, rl: rl}, nil
}

// Run reads and executes lines until EOF, quit or ctx is done.
func (sh *Shell) Run(ctx context.Context) {
	defer sh.rl.Close()

	fmt.Fprintln(sh.session.Out, "Type 'help' for commands, 'quit' to exit.")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := sh.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		if !Dispatch(ctx, sh.session, line) {
			return
		}
	}
}

// Dispatch runs one shell line. It returns false when the shell should exit.
func Dispatch(ctx context.Context, s *Session, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	name, args := strings.ToLower(parts[0]), parts[1:]

	switch name {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		Usage(s.Out)
		return true
	}

	if _, ok := Lookup(name); !ok {
		fmt.Fprintf(s.Out, "Unknown command: %s (type 'help' for commands)\n", name)
		return true
	}
	if err := Execute(ctx, s, name, args); err != nil {
		printError(s.Out, err)
	}
	return true
}

func printError(w io.Writer, err error) {
	if err == ErrUsage {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
