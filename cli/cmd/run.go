package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/tether/notify"
	"github.com/justapithecus/tether/term"
)

// RunCommand executes one command on an ephemeral runtime and exits
// with the remote command's exit code.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a command on a remote runtime",
		ArgsUsage: "-- COMMAND [ARGS...]",
		Description: "Acquires a runtime, opens a terminal channel, runs the " +
			"command, and exits with the remote exit code. Everything after " +
			"-- is joined into a single shell command line.",
		Flags:  AcquisitionFlags(),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("no command given; usage: tether run -- COMMAND [ARGS...]", 2)
	}
	command := shellquote.Join(c.Args().Slice()...)

	sess, err := newSession(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	start := time.Now()

	assigned, err := sess.manager.Assign(ctx, sess.assignOptions(c))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	sess.meta.RuntimeID = assigned.ID
	logger := sess.logger.WithRuntime(assigned.ID)

	sink, err := sess.openRecording(ctx, c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("recording setup: %v", err), 1)
	}

	channel, err := term.Open(ctx, assigned, sess.channel)
	if err != nil {
		sess.closeQuietly(sink, "recording sink")
		return cli.Exit(err.Error(), 1)
	}

	conn := sess.tapConn(channel, sink)

	exitCode, err := term.Run(ctx, conn, command, term.ExecConfig{
		Logger:    logger,
		Collector: sess.collector,
		Verbose:   sess.verbose,
	})
	sess.closeQuietly(conn, "channel")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	sess.publishCompletion(command, exitCode, time.Since(start))

	logger.Debug("session complete", sess.collector.Snapshot().Fields())

	if exitCode != 0 {
		return cli.Exit("", exitCode)
	}
	return nil
}

// publishCompletion sends the completion event to the configured
// adapter. Delivery failures are logged, never fatal: the exit code
// belongs to the remote command, not the notification pipeline.
func (s *session) publishCompletion(command string, exitCode int, elapsed time.Duration) {
	adapter, err := s.buildAdapter()
	if err != nil {
		s.logger.Warn("notification adapter misconfigured", map[string]any{"error": err.Error()})
		return
	}
	if adapter == nil {
		return
	}
	defer s.closeQuietly(adapter, "notification adapter")

	event := &notify.CommandCompletedEvent{
		SchemaVersion: notify.SchemaVersion,
		EventType:     notify.EventType,
		SessionID:     s.meta.SessionID,
		RuntimeID:     s.meta.RuntimeID,
		Variant:       string(s.meta.Variant),
		Command:       command,
		ExitCode:      exitCode,
		DurationMs:    elapsed.Milliseconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := adapter.Publish(ctx, event); err != nil {
		s.logger.Warn("completion event not delivered", map[string]any{"error": err.Error()})
	}
}
