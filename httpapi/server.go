// Package httpapi is the thin HTTP transport (§6): the routes external
// workers and operators use to drive C4-C8, routed with httprouter per the
// DOMAIN STACK assignment. Behavior lives in the core packages; this
// package only decodes requests, calls into them, and encodes responses.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modsentry/orchestrator/chain"
	"github.com/modsentry/orchestrator/dispatch"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/store"
	"github.com/modsentry/orchestrator/types"
)

// Server holds the core-package dependencies the HTTP surface routes
// against.
type Server struct {
	Store      *store.Store
	Chains     chain.Repository
	Registry   *registry.Registry
	Reports    report.Repository
	Dispatcher *dispatch.Dispatcher
	Results    *external.ResultIngester
	Logger     *log.Logger
}

// NewRouter builds the full httprouter.Router for the orchestrator's HTTP
// surface (§6), plus /metrics for the ambient Prometheus exporter.
func NewRouter(s *Server) *httprouter.Router {
	r := httprouter.New()

	r.GET("/health", s.handleHealth)
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	r.GET("/external-modules/:id/files", s.handleExternalFiles)
	r.POST("/external-modules/:id/results", s.handleExternalResults)

	r.GET("/artifacts", s.handleListArtifacts)
	r.POST("/artifacts", s.handleIngestArtifact)
	r.GET("/reports/:fingerprint", s.handleGetReport)

	r.GET("/chains", s.handleListChains)
	r.POST("/chains", s.handleCreateChain)
	r.GET("/chains/:name", s.handleGetChain)
	r.DELETE("/chains/:name", s.handleDeleteChain)

	r.GET("/modules", s.handleListModules)
	r.POST("/modules/register", s.handleRegisterModule)
	r.DELETE("/modules/:id", s.handleDeregisterModule)

	r.GET("/settings/autorun", s.handleGetAutoRun)
	r.PUT("/settings/autorun", s.handleSetAutoRun)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForKind(types.KindOf(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForKind maps a domain error kind to an HTTP status per §7's
// propagation table.
func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindInvalidInput:
		return http.StatusBadRequest
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindIllegalState:
		return http.StatusConflict
	case types.KindUnavailable:
		return http.StatusServiceUnavailable
	case types.KindTimeout:
		return http.StatusGatewayTimeout
	case types.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func requestContext(r *http.Request) context.Context {
	return r.Context()
}
