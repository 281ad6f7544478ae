// Package shell provides an interactive REPL for driving the router
// directly from a terminal, grounded on the teacher's internal/repl
// package: a readline.Instance with history and tab completion, a
// signal-driven graceful shutdown, and a line-processing loop that
// treats "/" prefixed input as commands and everything else as a
// routable message.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/lokoweb3/skillbot/internal/router"
)

// Shell is an interactive loop over a Router.
type Shell struct {
	router *router.Router

	rl       *readline.Instance
	rlClosed bool
	rlMu     sync.Mutex
}

// New constructs a Shell bound to rtr.
func New(rtr *router.Router) *Shell {
	return &Shell{router: rtr}
}

func (s *Shell) closeReadline() error {
	s.rlMu.Lock()
	defer s.rlMu.Unlock()
	if s.rlClosed || s.rl == nil {
		return nil
	}
	s.rlClosed = true
	return s.rl.Close()
}

func historyPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(homeDir, ".botctl")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	return filepath.Join(dir, "shell_history")
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("/quit"),
		readline.PcItem("/exit"),
		readline.PcItem("/help"),
		readline.PcItem("/routes"),
		readline.PcItem("/analytics"),
	)
}

// Run starts the REPL loop over ctx, reading lines until EOF, /quit,
// /exit, or a signal.
func (s *Shell) Run(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		fmt.Println("\nshutting down")
		_ = s.closeReadline()
	}()

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 cyan("bot> "),
		HistoryFile:            historyPath(),
		HistoryLimit:           1000,
		AutoComplete:           completer(),
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		HistorySearchFold:      true,
		DisableAutoSaveHistory: false,
	})
	if err != nil {
		return fmt.Errorf("shell: create readline: %w", err)
	}
	defer s.closeReadline()
	s.rl = rl

	fmt.Println("self-supervising bot shell. type /help for commands, /quit to leave.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println("goodbye")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := s.handleCommand(ctx, line); done {
				return nil
			}
			continue
		}

		outcome := s.router.Route(ctx, line, line)
		s.printOutcome(outcome)
	}
}

func (s *Shell) handleCommand(ctx context.Context, line string) (exit bool) {
	switch line {
	case "/quit", "/exit":
		fmt.Println("goodbye")
		return true
	case "/help":
		fmt.Println("/routes      list registered routes")
		fmt.Println("/analytics   show route hit/success summary")
		fmt.Println("/quit, /exit leave the shell")
	case "/routes":
		for _, r := range s.router.Routes() {
			fmt.Printf("  %-20s priority=%d risk=%s auto=%v\n", r.Name, r.Priority, r.Risk, r.AutoExecute)
		}
	case "/analytics":
		summaries, unmatched := s.router.Analytics()
		for _, sum := range summaries {
			fmt.Printf("  %-20s hits=%d success_rate=%.1f%% avg_ms=%d\n", sum.Name, sum.Hits, sum.SuccessRate, sum.AvgDurationMs)
		}
		if len(unmatched) > 0 {
			fmt.Println("  recent unmatched:")
			for _, u := range unmatched {
				fmt.Printf("    %s (%s)\n", u.Message, u.Timestamp)
			}
		}
	default:
		fmt.Printf("unknown command %q\n", line)
	}
	return false
}

func (s *Shell) printOutcome(o interface{}) {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", o)
		return
	}
	fmt.Println(string(data))
}
