package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/modsentry/orchestrator/cli/render"
	"github.com/modsentry/orchestrator/types"
)

// ChainCommand groups chain definition store (C5) subcommands.
func ChainCommand() *cli.Command {
	return &cli.Command{
		Name:  "chain",
		Usage: "Manage chain definitions",
		Subcommands: []*cli.Command{
			chainListCommand(),
			chainShowCommand(),
			chainCreateCommand(),
			chainDeleteCommand(),
		},
	}
}

func chainListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List all chain definitions",
		Flags:  append([]cli.Flag{AddrFlag}, ReadOnlyFlags()...),
		Action: chainListAction,
	}
}

func chainListAction(c *cli.Context) error {
	var chains []types.Chain
	if err := httpCall(c, http.MethodGet, "/chains", nil, &chains); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(chains)
}

func chainShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one chain definition",
		ArgsUsage: "<name>",
		Flags:     append([]cli.Flag{AddrFlag}, ReadOnlyFlags()...),
		Action:    chainShowAction,
	}
}

func chainShowAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("chain name is required", 1)
	}
	var chain types.Chain
	if err := httpCall(c, http.MethodGet, "/chains/"+name, nil, &chain); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(chain)
}

func chainCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a chain from a YAML definition file",
		ArgsUsage: "<file.yaml>",
		Flags:     []cli.Flag{AddrFlag},
		Action:    chainCreateAction,
	}
}

func chainCreateAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("path to a chain definition file is required", 1)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	var chain types.Chain
	if err := yaml.Unmarshal(data, &chain); err != nil {
		return cli.Exit(fmt.Sprintf("invalid chain definition: %v", err), 1)
	}

	var created types.Chain
	if err := httpCall(c, http.MethodPost, "/chains", chain, &created); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(created)
}

func chainDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a chain definition",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{AddrFlag},
		Action:    chainDeleteAction,
	}
}

func chainDeleteAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("chain name is required", 1)
	}
	return httpCall(c, http.MethodDelete, "/chains/"+name, nil, nil)
}
