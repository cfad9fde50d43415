package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	xterm "golang.org/x/term"

	"github.com/justapithecus/tether/term"
)

// AttachCommand opens an interactive pass-through session on a runtime.
func AttachCommand() *cli.Command {
	return &cli.Command{
		Name:  "attach",
		Usage: "Attach an interactive terminal to a remote runtime",
		Description: "Acquires a runtime and bridges the local terminal to it. " +
			"The local terminal is put in raw mode; press Ctrl-] to detach.",
		Flags:  AcquisitionFlags(),
		Action: attachAction,
	}
}

func attachAction(c *cli.Context) error {
	stdinFD := int(os.Stdin.Fd())
	if !xterm.IsTerminal(stdinFD) {
		return cli.Exit("attach requires a terminal on stdin", 2)
	}

	sess, err := newSession(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
	defer sess.closeQuietly(conn, "channel")

	oldState, err := xterm.MakeRaw(stdinFD)
	if err != nil {
		return cli.Exit(fmt.Sprintf("raw mode: %v", err), 1)
	}
	restored := false
	restore := func() {
		if !restored {
			xterm.Restore(stdinFD, oldState)
			restored = true
		}
	}
	defer restore()

	resizeCh := make(chan term.Winsize, 4)
	stopResize := make(chan struct{})
	defer close(stopResize)
	go watchResize(stdinFD, resizeCh, stopResize)

	// Seed the remote PTY with the current geometry before any input.
	if cols, rows, err := xterm.GetSize(stdinFD); err == nil {
		pushResize(resizeCh, rows, cols)
	}

	fmt.Fprintf(os.Stderr, "attached to %s (%s); press Ctrl-] to detach\r\n", assigned.ID, assigned.Variant)

	err = term.Start(ctx, conn, term.InteractiveConfig{
		StartupCommand: sess.cfg.StartupCommand,
		Resize:         resizeCh,
		Logger:         logger,
	})
	restore()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(os.Stderr, "detached")
	return nil
}

// watchResize forwards SIGWINCH geometry changes until stop closes.
func watchResize(fd int, resizeCh chan<- term.Winsize, stop <-chan struct{}) {
	winchCh := make(chan os.Signal, 1)
	signal.Notify(winchCh, syscall.SIGWINCH)
	defer signal.Stop(winchCh)
	for {
		select {
		case <-stop:
			return
		case <-winchCh:
			cols, rows, err := xterm.GetSize(fd)
			if err != nil {
				continue
			}
			pushResize(resizeCh, rows, cols)
		}
	}
}

// pushResize delivers a geometry update without blocking; a stale size
// is dropped in favor of the next one.
func pushResize(resizeCh chan<- term.Winsize, rows, cols int) {
	select {
	case resizeCh <- term.Winsize{Rows: rows, Cols: cols}:
	default:
	}
}
