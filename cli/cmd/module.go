package cmd

import (
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/modsentry/orchestrator/cli/render"
	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/types"
)

// ModuleCommand groups module registry (C4) subcommands.
func ModuleCommand() *cli.Command {
	return &cli.Command{
		Name:  "module",
		Usage: "Manage the module registry",
		Subcommands: []*cli.Command{
			moduleListCommand(),
			moduleRegisterCommand(),
			moduleDeregisterCommand(),
		},
	}
}

func moduleListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List registered modules",
		Flags:  append([]cli.Flag{AddrFlag}, ReadOnlyFlags()...),
		Action: moduleListAction,
	}
}

func moduleListAction(c *cli.Context) error {
	var modules []types.ModuleDescriptor
	if err := httpCall(c, http.MethodGet, "/modules", nil, &modules); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(modules)
}

func moduleRegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Register or re-register an external module",
		Flags: []cli.Flag{
			AddrFlag,
			&cli.StringFlag{Name: "id", Required: true, Usage: "Module ID"},
			&cli.StringFlag{Name: "base-url", Required: true, Usage: "Module's base URL"},
			&cli.StringFlag{Name: "healthcheck-url", Usage: "Module's healthcheck URL"},
			&cli.StringFlag{Name: "name", Usage: "Module display name"},
			&cli.StringSliceFlag{Name: "input-format", Usage: "Accepted file type (repeatable): apk, ipa, zip, source"},
		},
		Action: moduleRegisterAction,
	}
}

func moduleRegisterAction(c *cli.Context) error {
	raw := c.StringSlice("input-format")
	formats := make([]types.FileType, 0, len(raw))
	for _, f := range raw {
		formats = append(formats, types.FileType(f))
	}

	req := registry.RegisterExternalRequest{
		ModuleID:       c.String("id"),
		BaseURL:        c.String("base-url"),
		HealthcheckURL: c.String("healthcheck-url"),
		Config: registry.ExternalModuleConfig{
			Name:         c.String("name"),
			InputFormats: formats,
		},
	}

	var m types.ModuleDescriptor
	if err := httpCall(c, http.MethodPost, "/modules/register", req, &m); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(m)
}

func moduleDeregisterCommand() *cli.Command {
	return &cli.Command{
		Name:      "deregister",
		Usage:     "Deregister an external module",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{AddrFlag},
		Action:    moduleDeregisterAction,
	}
}

func moduleDeregisterAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("module id is required", 1)
	}
	return httpCall(c, http.MethodDelete, "/modules/"+id, nil, nil)
}
