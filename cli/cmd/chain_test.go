package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modsentry/orchestrator/types"
)

func TestChainCreateListShowDelete(t *testing.T) {
	ts, _ := newTestBackend(t)
	app := newTestApp(ChainCommand())

	def := "name: scan-apk\nsteps:\n  - module_id: unpack\n"
	path := filepath.Join(t.TempDir(), "chain.yaml")
	if err := os.WriteFile(path, []byte(def), 0o600); err != nil {
		t.Fatalf("write chain file: %v", err)
	}

	if _, err := runCLI(t, app, "chain", "create", "--addr", ts.URL, path); err != nil {
		t.Fatalf("chain create: %v", err)
	}

	out, err := runCLI(t, app, "chain", "list", "--addr", ts.URL, "--format", "json")
	if err != nil {
		t.Fatalf("chain list: %v", err)
	}
	var chains []types.Chain
	if err := json.Unmarshal([]byte(out), &chains); err != nil {
		t.Fatalf("decode chain list %q: %v", out, err)
	}
	if len(chains) != 1 || chains[0].Name != "scan-apk" {
		t.Fatalf("chains = %+v, want one scan-apk entry", chains)
	}

	out, err = runCLI(t, app, "chain", "show", "--addr", ts.URL, "--format", "json", "scan-apk")
	if err != nil {
		t.Fatalf("chain show: %v", err)
	}
	if !strings.Contains(out, "scan-apk") {
		t.Fatalf("chain show output = %q, want scan-apk", out)
	}

	if _, err := runCLI(t, app, "chain", "delete", "--addr", ts.URL, "scan-apk"); err != nil {
		t.Fatalf("chain delete: %v", err)
	}

	if _, err := runCLI(t, app, "chain", "show", "--addr", ts.URL, "--format", "json", "scan-apk"); err == nil {
		t.Fatal("chain show after delete should error")
	}
}

func TestChainShowRequiresName(t *testing.T) {
	app := newTestApp(ChainCommand())
	if _, err := runCLI(t, app, "chain", "show"); err == nil {
		t.Fatal("expected error when chain name is missing")
	}
}
