// Package main provides the modsentry CLI entrypoint.
//
// modsentry is both the orchestrator's HTTP server (`serve`) and a thin
// HTTP client for operating it (`chain`, `module`, `ingest`, `inspect`).
// Every command but `serve` and `version` talks to a running instance over
// HTTP; none of them touch the core packages directly.
//
// Usage:
//
//	modsentry <command> [subcommand] [options]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/modsentry/orchestrator/cli/cmd"
	"github.com/modsentry/orchestrator/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "modsentry",
		Usage:          "Mobile application artifact analysis orchestrator",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ChainCommand(),
			cmd.ModuleCommand(),
			cmd.IngestCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand("", commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes set via cli.Exit(), so subcommand
// failures (bad flags, server errors) propagate a meaningful status.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
