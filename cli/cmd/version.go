package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/tether/cli/render"
	"github.com/justapithecus/tether/types"
)

// Commit is the git commit the binary was built from.
// Set at build time via -ldflags "-X github.com/justapithecus/tether/cli/cmd.Commit=...".
var Commit = "unknown"

// VersionResponse is the version payload for rendering.
type VersionResponse struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
}

// TableHeader implements render.Tabular.
func (VersionResponse) TableHeader() []string {
	return []string{"VERSION", "COMMIT"}
}

// TableRows implements render.Tabular.
func (v VersionResponse) TableRows() [][]string {
	return [][]string{{v.Version, v.Commit}}
}

// VersionCommand reports the client version.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			renderer, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return renderer.Render(VersionResponse{
				Version: types.Version,
				Commit:  Commit,
			})
		},
	}
}
