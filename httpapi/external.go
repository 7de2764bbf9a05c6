package httpapi

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/modsentry/orchestrator/types"
)

var errMissingFingerprint = errors.New("fingerprint query parameter is required")

// handleExternalFiles implements GET /external-modules/{id}/files?fingerprint=...&file_ids=...
// (§4.8, §6): streams a gzip tar of the artifact's extracted tree, optionally
// restricted to the comma-separated file_ids allow-list.
func (s *Server) handleExternalFiles(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	moduleID := ps.ByName("id")
	if _, err := s.Registry.Get(requestContext(r), moduleID); err != nil {
		writeError(w, err)
		return
	}

	fingerprint := r.URL.Query().Get("fingerprint")
	if fingerprint == "" {
		writeError(w, types.NewError(types.KindInvalidInput, "httpapi.handleExternalFiles", errMissingFingerprint))
		return
	}

	var fileIDs []string
	if raw := r.URL.Query().Get("file_ids"); raw != "" {
		fileIDs = strings.Split(raw, ",")
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if err := s.Store.Tarball(requestContext(r), fingerprint, fileIDs, gz); err != nil {
		s.Logger.Error("stream tarball failed", map[string]any{"fingerprint": fingerprint, "error": err.Error()})
	}
}

// resultRequest is the wire envelope for POST /external-modules/{id}/results
// (§4.8, §6): {task_id, file_hash, results: {status, error?, findings?, summary?}}.
type resultRequest struct {
	TaskID   string `json:"task_id"`
	FileHash string `json:"file_hash"`
	Results  struct {
		Status   types.ResultStatus `json:"status"`
		Error    string             `json:"error,omitempty"`
		Findings []types.Finding    `json:"findings,omitempty"`
		Summary  *types.Summary     `json:"summary,omitempty"`
	} `json:"results"`
}

// handleExternalResults implements POST /external-modules/{id}/results.
func (s *Server) handleExternalResults(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	moduleID := ps.ByName("id")

	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewError(types.KindInvalidInput, "httpapi.handleExternalResults", err))
		return
	}

	result := &types.ModuleResult{
		TaskID:       req.TaskID,
		Fingerprint:  req.FileHash,
		Status:       req.Results.Status,
		ErrorMessage: req.Results.Error,
		Findings:     req.Results.Findings,
		Summary:      req.Results.Summary,
		CompletedAt:  time.Now().UTC(),
	}

	if err := s.Results.Ingest(requestContext(r), moduleID, result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
