package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/modsentry/orchestrator/types"
)

// handleListChains implements GET /chains (C5).
func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	chains, err := s.Chains.List(requestContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chains)
}

// handleCreateChain implements POST /chains.
func (s *Server) handleCreateChain(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var c types.Chain
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, types.NewError(types.KindInvalidInput, "httpapi.handleCreateChain", err))
		return
	}

	created, err := s.Chains.Create(requestContext(r), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetChain implements GET /chains/{name}.
func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := s.Chains.Get(requestContext(r), ps.ByName("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteChain implements DELETE /chains/{name}.
func (s *Server) handleDeleteChain(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.Chains.Delete(requestContext(r), ps.ByName("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
