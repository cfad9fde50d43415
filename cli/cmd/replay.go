package cmd

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/tether/record"
)

// ReplayCommand renders a recorded session file to stdout.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a recorded session",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "timing",
				Usage: "Replay inter-frame gaps instead of dumping immediately",
			},
			&cli.DurationFlag{
				Name:  "timing-cap",
				Usage: "Upper bound on a single replayed gap",
				Value: 2 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "show-input",
				Usage: "Also render keystrokes and resizes the client sent",
			},
		},
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: tether replay FILE", 2)
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer f.Close()

	err = record.Replay(f, os.Stdout, record.ReplayOptions{
		Timing:    c.Bool("timing"),
		TimingCap: c.Duration("timing-cap"),
		ShowInput: c.Bool("show-input"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
