package term

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/justapithecus/tether/log"
	"github.com/justapithecus/tether/metrics"
	"github.com/justapithecus/tether/wire"
)

// statusVar holds the command's exit status between capture and the
// sentinel print. Named to avoid colliding with user environment.
const statusVar = "__TETHER_STATUS"

// ExecConfig holds Run inputs beyond the channel and command.
type ExecConfig struct {
	// Logger is the session logger (required).
	Logger *log.Logger
	// Collector records line counters. Nil disables metrics.
	Collector *metrics.Collector
	// Stdout receives command output lines. Defaults to os.Stdout.
	Stdout io.Writer
	// Stderr receives raw stderr frames. Defaults to os.Stderr.
	Stderr io.Writer
	// Verbose forwards boilerplate lines instead of suppressing them.
	Verbose bool
	// Marker overrides the per-run sentinel marker. Tests only;
	// empty means a fresh random marker.
	Marker string
}

// prologue builds the wrapped payload for one command. The remote shell
// never sees the command verbatim: echo is disabled first so the shell's
// character echo does not duplicate output, the prompt is cleared, the
// exit status is captured immediately after the command, and a single
// sentinel line carries it back before the session ends.
func prologue(command, marker string) ([]string, string) {
	lines := []string{
		"stty -echo",
		"PS1=",
		command,
		statusVar + "=$?",
		"stty echo",
		fmt.Sprintf(`printf '%s:%%s\n' "$%s"`, marker, statusVar),
		"exit",
	}
	return lines, strings.Join(lines, "\n") + "\n"
}

// Run executes one command over an open channel and returns its exit
// code. The run ends only when the channel closes; a Disconnect frame
// alone does not end it. If the channel closes without a sentinel line
// having been observed, Run warns and returns 1. Cancelling ctx closes
// the channel, which funnels cancellation through the same close path
// as normal termination.
func Run(ctx context.Context, conn Conn, command string, cfg ExecConfig) (int, error) {
	if strings.TrimSpace(command) == "" {
		return 0, ErrEmptyCommand
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	marker := cfg.Marker
	if marker == "" {
		marker = uuid.NewString()
	}

	lines, payload := prologue(command, marker)

	var (
		exitCode int
		captured bool
	)
	proc := NewLineProcessor(marker, lines, func(line string, class Classification) {
		switch class {
		case ClassSentinel:
			code, ok := SentinelStatus(strings.TrimSpace(line), marker)
			if !ok {
				cfg.Logger.Debug("ignoring malformed sentinel line", map[string]any{"line": line})
				return
			}
			exitCode = code
			captured = true
		case ClassBoilerplate:
			if cfg.Verbose {
				fmt.Fprintln(stdout, line)
				cfg.Collector.IncLinesEmitted()
				return
			}
			cfg.Collector.IncLinesSuppressed()
		default:
			fmt.Fprintln(stdout, line)
			cfg.Collector.IncLinesEmitted()
		}
	})

	if err := conn.Send(wire.Stdin{Text: payload}); err != nil {
		return 0, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for frame := range conn.Frames() {
		switch f := frame.(type) {
		case wire.Stdout:
			proc.Feed(f.Text)
		case wire.Stderr:
			fmt.Fprint(stderr, f.Text)
		case wire.Disconnect:
			cfg.Logger.Debug("remote disconnect", map[string]any{"reason": f.Reason})
		}
	}
	proc.Flush()

	if err := conn.Err(); err != nil {
		return 0, err
	}
	if !captured {
		cfg.Logger.Warn("channel closed without an exit status; assuming failure", nil)
		return 1, nil
	}
	return exitCode, nil
}
