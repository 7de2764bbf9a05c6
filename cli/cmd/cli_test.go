package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/modsentry/orchestrator/chain"
	"github.com/modsentry/orchestrator/dispatch"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/httpapi"
	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/store"
	"github.com/modsentry/orchestrator/types"
)

// newTestBackend spins up a real httpapi.Server (in-memory backends) behind
// an httptest.Server, mirroring httpapi's own test harness so CLI commands
// exercise the real HTTP contract rather than a mock.
func newTestBackend(t *testing.T) (*httptest.Server, *httpapi.Server) {
	t.Helper()

	backend, err := store.NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("new local backend: %v", err)
	}
	st := store.New(backend)
	chains := chain.NewMemRepository()
	reg := registry.New()
	reports := report.NewMemRepository()
	plane := queue.NewMemPlane()
	disp := dispatch.New(chains, noopStarter{})
	results := external.NewResultIngester(reg, st, plane, reports)

	srv := &httpapi.Server{
		Store: st, Chains: chains, Registry: reg, Reports: reports,
		Dispatcher: disp, Results: results, Logger: log.NewLogger(),
	}

	ts := httptest.NewServer(httpapi.NewRouter(srv))
	t.Cleanup(ts.Close)
	return ts, srv
}

type noopStarter struct{}

func (noopStarter) StartChainRun(_ context.Context, _ types.Chain, _ string) (*types.ChainRun, error) {
	return nil, nil
}

// newTestApp builds a bare cli.App wired with the one command under test,
// so Action functions run exactly as they would from the modsentry binary.
func newTestApp(cmd *cli.Command) *cli.App {
	return &cli.App{
		Name:     "modsentry",
		Commands: []*cli.Command{cmd},
	}
}

// runCLI runs app with args (prefixed with the binary name) and returns
// whatever it wrote to stdout.
func runCLI(t *testing.T, app *cli.App, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	runErr := app.Run(append([]string{"modsentry"}, args...))

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String(), runErr
}
