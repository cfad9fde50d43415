package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/tether/cli/render"
	"github.com/justapithecus/tether/cli/tui"
	"github.com/justapithecus/tether/types"
)

// RuntimesCommand lists the runtimes visible to the current token.
func RuntimesCommand() *cli.Command {
	return &cli.Command{
		Name:    "runtimes",
		Aliases: []string{"rt"},
		Usage:   "List available runtimes",
		Flags:   ReadOnlyFlags(),
		Action:  runtimesAction,
	}
}

// RuntimeListing adapts a runtime list for table rendering.
type RuntimeListing []types.RuntimeInfo

// TableHeader implements render.Tabular.
func (RuntimeListing) TableHeader() []string {
	return []string{"ID", "LABEL", "VARIANT", "PHASE", "CONNECTABLE"}
}

// TableRows implements render.Tabular.
func (l RuntimeListing) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for i := range l {
		rt := &l[i]
		rows = append(rows, []string{
			rt.ID,
			rt.Label,
			string(rt.Variant),
			string(rt.Phase),
			fmt.Sprintf("%t", rt.Connectable()),
		})
	}
	return rows
}

func runtimesAction(c *cli.Context) error {
	sess, err := newSession(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	runtimes, err := sess.client.ListRuntimes(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool(TUIFlag.Name) {
		return tui.RunRuntimesTUI(runtimes)
	}

	renderer, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return renderer.Render(RuntimeListing(runtimes))
}
