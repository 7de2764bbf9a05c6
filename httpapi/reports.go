package httpapi

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/modsentry/orchestrator/types"
)

// handleIngestArtifact implements POST /artifacts (C1): accepts a
// multipart file upload, ingests it into the artifact store, and — if an
// auto-run rule matches its detected type — starts the configured chain
// (C7) via the same Dispatcher entry point ingestion always uses.
func (s *Server) handleIngestArtifact(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, types.NewError(types.KindInvalidInput, "httpapi.handleIngestArtifact", err))
		return
	}
	defer file.Close()

	artifact, err := s.Store.Ingest(requestContext(r), file, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.Dispatcher != nil {
		if _, err := s.Dispatcher.OnIngested(requestContext(r), artifact); err != nil {
			s.Logger.Error("auto-run dispatch failed", map[string]any{"fingerprint": artifact.Fingerprint, "error": err.Error()})
		}
	}

	writeJSON(w, http.StatusCreated, artifact)
}

const (
	defaultPageSize = 50
	firstPage       = 1
)

// handleListArtifacts implements GET /artifacts?page=&size= (C2).
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page := queryInt(r, "page", firstPage)
	size := queryInt(r, "size", defaultPageSize)

	fingerprints, err := s.Reports.ListArtifacts(page-firstPage, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": fingerprints, "page": page, "size": size})
}

// handleGetReport implements GET /reports/{fingerprint}.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	report, err := s.Reports.GetReport(ps.ByName("fingerprint"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
