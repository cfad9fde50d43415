// Package main provides the tether CLI entrypoint.
//
// Usage:
//
//	tether <command> [options]
//
// The `run` command exits with the remote command's exit code; all other
// commands exit 0 on success, 1 on failure, 2 on usage errors.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/tether/cli/cmd"
	"github.com/justapithecus/tether/types"
)

func main() {
	app := &cli.App{
		Name:           "tether",
		Usage:          "Run commands on ephemeral remote runtimes",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, cmd.Commit),
		Flags:          cmd.GlobalFlags(),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.AttachCommand(),
			cmd.RuntimesCommand(),
			cmd.ReplayCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors; this
		// branch covers unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() so `run` can
// propagate the remote command's exit code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; a bare code
		// carries no message worth printing.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
