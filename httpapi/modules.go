package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/types"
)

// handleListModules implements GET /modules (C4).
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	modules, err := s.Registry.List(requestContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modules)
}

// handleRegisterModule implements POST /modules/register: registers or
// re-registers an external module (C4, §6 registration wire shape).
func (s *Server) handleRegisterModule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registry.RegisterExternalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewError(types.KindInvalidInput, "httpapi.handleRegisterModule", err))
		return
	}

	m, err := s.Registry.RegisterExternal(requestContext(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleDeregisterModule implements DELETE /modules/{id}.
func (s *Server) handleDeregisterModule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.Registry.DeregisterExternal(requestContext(r), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
