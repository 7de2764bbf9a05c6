package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/modsentry/orchestrator/cli/render"
	"github.com/modsentry/orchestrator/types"
)

// IngestCommand uploads a local file to the artifact store (C1) and, if an
// auto-run rule matches its detected type, starts the configured chain.
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest a local APK/IPA/source archive",
		ArgsUsage: "<path>",
		Flags:     append([]cli.Flag{AddrFlag}, ReadOnlyFlags()...),
		Action:    ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("path to an artifact is required", 1)
	}

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if _, err := io.Copy(part, f); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := mw.Close(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	req, err := http.NewRequestWithContext(c.Context, http.MethodPost, c.String("addr")+"/artifacts", &buf)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return cli.Exit("ingest failed: server returned status "+resp.Status, 1)
	}

	var artifact types.Artifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(artifact)
}
