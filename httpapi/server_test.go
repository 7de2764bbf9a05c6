package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modsentry/orchestrator/chain"
	"github.com/modsentry/orchestrator/dispatch"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/store"
	"github.com/modsentry/orchestrator/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
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
	disp := dispatch.New(chains, fakeStarter{})
	results := external.NewResultIngester(reg, st, plane, reports)

	srv := &Server{
		Store:      st,
		Chains:     chains,
		Registry:   reg,
		Reports:    reports,
		Dispatcher: disp,
		Results:    results,
		Logger:     log.NewLogger(),
	}

	ts := httptest.NewServer(NewRouter(srv))
	t.Cleanup(ts.Close)
	return ts, srv
}

type fakeStarter struct{}

func (fakeStarter) StartChainRun(_ context.Context, _ types.Chain, _ string) (*types.ChainRun, error) {
	return nil, nil
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestChainCRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(types.Chain{Name: "scan-apk", Steps: []types.ChainStep{{ModuleID: "unpack"}}})
	resp, err := http.Post(ts.URL+"/chains", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chains: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/chains/scan-apk")
	if err != nil {
		t.Fatalf("GET /chains/scan-apk: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp2.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/chains/scan-apk", nil)
	resp3, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /chains/scan-apk: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp3.StatusCode)
	}

	resp4, err := http.Get(ts.URL + "/chains/scan-apk")
	if err != nil {
		t.Fatalf("GET /chains/scan-apk after delete: %v", err)
	}
	defer resp4.Body.Close()
	if resp4.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", resp4.StatusCode)
	}
}

func TestRegisterAndDeregisterModule(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(registry.RegisterExternalRequest{
		ModuleID: "yara-scan",
		BaseURL:  "http://yara.internal:8080",
		Config:   registry.ExternalModuleConfig{Name: "yara-scan", InputFormats: []types.FileType{types.FileTypeAPK}},
	})
	resp, err := http.Post(ts.URL+"/modules/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /modules/register: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d, want 200", resp.StatusCode)
	}

	listResp, err := http.Get(ts.URL + "/modules")
	if err != nil {
		t.Fatalf("GET /modules: %v", err)
	}
	defer listResp.Body.Close()
	var modules []types.ModuleDescriptor
	if err := json.NewDecoder(listResp.Body).Decode(&modules); err != nil {
		t.Fatalf("decode modules: %v", err)
	}
	if len(modules) != 1 || modules[0].ID != "yara-scan" {
		t.Fatalf("modules = %+v, want one yara-scan entry", modules)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/modules/yara-scan", nil)
	deregResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /modules/yara-scan: %v", err)
	}
	defer deregResp.Body.Close()
	if deregResp.StatusCode != http.StatusNoContent {
		t.Fatalf("deregister status = %d, want 204", deregResp.StatusCode)
	}
}

func TestAutoRunSettingsRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	cfg := types.AutoRunConfig{APK: types.Rule{Kind: types.RuleModule, TargetID: "unpack"}}
	body, _ := json.Marshal(cfg)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/settings/autorun", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /settings/autorun: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/settings/autorun")
	if err != nil {
		t.Fatalf("GET /settings/autorun: %v", err)
	}
	defer getResp.Body.Close()
	var got types.AutoRunConfig
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode autorun config: %v", err)
	}
	if got.APK.Kind != types.RuleModule || got.APK.TargetID != "unpack" {
		t.Fatalf("got = %+v, want %+v", got, cfg)
	}
}

func TestExternalResultIngestionRejectsUnknownModule(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"task_id":   "t1",
		"file_hash": "deadbeef",
		"results":   map[string]any{"status": string(types.StatusSuccess)},
	})
	resp, err := http.Post(ts.URL+"/external-modules/unknown-module/results", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST results: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestExternalResultIngestionAccepted(t *testing.T) {
	ts, srv := newTestServer(t)
	ctx := t.Context()

	if _, err := srv.Registry.RegisterExternal(ctx, registry.RegisterExternalRequest{
		ModuleID: "yara-scan",
		BaseURL:  "http://yara.internal:8080",
		Config:   registry.ExternalModuleConfig{Name: "yara-scan"},
	}); err != nil {
		t.Fatalf("register module: %v", err)
	}

	spool := strings.NewReader("fake apk bytes")
	artifact, err := srv.Store.Ingest(ctx, spool, "app.apk")
	if err != nil {
		t.Fatalf("ingest artifact: %v", err)
	}

	body, _ := json.Marshal(map[string]any{
		"task_id":   "t1",
		"file_hash": artifact.Fingerprint,
		"results":   map[string]any{"status": string(types.StatusSuccess)},
	})
	resp, err := http.Post(ts.URL+"/external-modules/yara-scan/results", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST results: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	rep, err := srv.Reports.GetReport(artifact.Fingerprint)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if rep.Modules["yara-scan"].Status != types.StatusSuccess {
		t.Fatalf("module result not recorded: %+v", rep.Modules)
	}
}

func TestListArtifactsAndGetReport(t *testing.T) {
	ts, srv := newTestServer(t)
	ctx := t.Context()

	artifact, err := srv.Store.Ingest(ctx, strings.NewReader("bytes"), "app.apk")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := srv.Reports.PutModuleResult(artifact.Fingerprint, types.ModuleResult{
		ModuleID: "unpack", Status: types.StatusSuccess, CompletedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	resp, err := http.Get(ts.URL + "/artifacts")
	if err != nil {
		t.Fatalf("GET /artifacts: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	reportResp, err := http.Get(ts.URL + "/reports/" + artifact.Fingerprint)
	if err != nil {
		t.Fatalf("GET /reports/%s: %v", artifact.Fingerprint, err)
	}
	defer reportResp.Body.Close()
	if reportResp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d, want 200", reportResp.StatusCode)
	}
}
