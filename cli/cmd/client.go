package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/urfave/cli/v2"
)

// AddrFlag points the CLI at a running `modsentry serve` instance.
var AddrFlag = &cli.StringFlag{
	Name:    "addr",
	Aliases: []string{"a"},
	Usage:   "Base URL of a running modsentry server",
	Value:   "http://localhost:8080",
	EnvVars: []string{"MODSENTRY_ADDR"},
}

// apiError is returned by the orchestrator's HTTP surface on failure.
type apiError struct {
	Error string `json:"error"`
}

// httpCall makes an HTTP request against the server's base URL and decodes
// a JSON response into out (skipped if out is nil).
func httpCall(ctx *cli.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx.Context, method, ctx.String("addr")+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact %s: %w", ctx.String("addr"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return cli.Exit(apiErr.Error, 1)
		}
		return cli.Exit(fmt.Sprintf("server returned status %d", resp.StatusCode), 1)
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
