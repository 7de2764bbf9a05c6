package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/modsentry/orchestrator/types"
)

// handleGetAutoRun implements GET /settings/autorun (C7).
func (s *Server) handleGetAutoRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.Dispatcher.Config())
}

// handleSetAutoRun implements PUT /settings/autorun.
func (s *Server) handleSetAutoRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var cfg types.AutoRunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, types.NewError(types.KindInvalidInput, "httpapi.handleSetAutoRun", err))
		return
	}
	s.Dispatcher.Store(cfg)
	writeJSON(w, http.StatusOK, cfg)
}
