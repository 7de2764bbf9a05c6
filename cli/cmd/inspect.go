package cmd

import (
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/modsentry/orchestrator/cli/render"
	"github.com/modsentry/orchestrator/report"
)

// InspectCommand shows the aggregate report for one artifact: its module
// results and chain-run history, optionally as a TUI view of the most
// recent chain run. The report is fetched once; the view does not refresh.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect an artifact's report by fingerprint",
		ArgsUsage: "<fingerprint>",
		Flags:     append([]cli.Flag{AddrFlag}, TUIReadOnlyFlags()...),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	fingerprint := c.Args().First()
	if fingerprint == "" {
		return cli.Exit("fingerprint is required", 1)
	}

	var rep report.Report
	if err := httpCall(c, http.MethodGet, "/reports/"+fingerprint, nil, &rep); err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		if len(rep.ChainRuns) == 0 {
			return cli.Exit("no chain runs to inspect for this fingerprint", 1)
		}
		latest := rep.ChainRuns[len(rep.ChainRuns)-1]
		return r.RenderTUI("inspect_chain_run", &latest)
	}

	return r.Render(rep)
}
