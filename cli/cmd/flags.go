// Package cmd provides CLI commands for the tether binary.
package cmd

import "github.com/urfave/cli/v2"

// Global flags shared by every command.
var (
	// ConfigFlag points at the optional tether.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to tether.yaml config file",
		EnvVars: []string{"TETHER_CONFIG"},
	}

	// APIURLFlag overrides the provider API base URL.
	APIURLFlag = &cli.StringFlag{
		Name:    "api-url",
		Usage:   "Runtime provider API base URL",
		EnvVars: []string{"TETHER_API_URL"},
	}

	// VerboseFlag raises the log level floor to debug and surfaces
	// boilerplate lines during command runs.
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Verbose output (debug logs, shell plumbing lines)",
	}

	// QuietFlag suppresses acquisition progress messages.
	QuietFlag = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "Suppress progress output",
	}
)

// Acquisition flags shared by run and attach.
var (
	// VariantFlag selects the runtime hardware class.
	VariantFlag = &cli.StringFlag{
		Name:  "variant",
		Usage: "Runtime hardware variant: gpu, tpu, or cpu",
	}

	// ForceNewFlag skips reuse of an existing ready runtime.
	ForceNewFlag = &cli.BoolFlag{
		Name:  "force-new",
		Usage: "Always provision a fresh runtime instead of reusing",
	}

	// RecordFlag enables session recording for this invocation.
	RecordFlag = &cli.BoolFlag{
		Name:  "record",
		Usage: "Record session frames (see recording config for backend)",
	}

	// RecordPathFlag overrides the recording destination from config.
	// A directory for the fs backend, "bucket/prefix" for s3.
	RecordPathFlag = &cli.StringFlag{
		Name:  "record-path",
		Usage: "Recording destination (implies --record)",
	}
)

// Read-only output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (runtimes only)",
	}
)

// GlobalFlags returns flags registered on the app itself.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		APIURLFlag,
		VerboseFlag,
		QuietFlag,
	}
}

// AcquisitionFlags returns the flags shared by session-opening commands.
func AcquisitionFlags() []cli.Flag {
	return []cli.Flag{
		VariantFlag,
		ForceNewFlag,
		RecordFlag,
		RecordPathFlag,
	}
}

// ReadOnlyFlags returns the shared flags for read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}
