package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/allureops/uploadoor/pkg/ingest/store"
)

// maxUploadMemory bounds the in-memory portion of a parsed multipart body;
// larger archives spill to temp files.
const maxUploadMemory = 32 << 20

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// runAck is the acknowledgment returned for an accepted run. It is the wire
// format the upload client decodes.
type runAck struct {
	Project   string `json:"project"`
	RunID     uint   `json:"run_id"`
	UIURL     string `json:"ui_url"`
	LatestURL string `json:"latest_url"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateRun accepts one multipart run upload: a "results" archive,
// a "results-metadata" JSON document, and an optional "config" part.
func (s *server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"parsing multipart body: " + err.Error()})

		return
	}

	archiveFile, archiveHeader, err := r.FormFile("results")
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"missing results part"})

		return
	}
	defer func() { _ = archiveFile.Close() }()

	rawMeta := r.FormValue("results-metadata")

	archivePath, size, err := s.saveArchive(project, archiveFile)
	if err != nil {
		s.log.WithError(err).Error("Failed to store archive")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"storing archive"})

		return
	}

	run := &store.Run{
		Project:     project,
		Status:      store.StatusOK,
		ArchivePath: archivePath,
		SizeBytes:   size,
		Metadata:    rawMeta,
	}

	fillFromMeta(run, rawMeta)

	if err := s.store.CreateRun(r.Context(), run); err != nil {
		s.log.WithError(err).Error("Failed to record run")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"recording run"})

		return
	}

	s.log.WithField("project", project).
		WithField("run_id", run.ID).
		WithField("archive", archiveHeader.Filename).
		WithField("bytes", size).
		Info("Run accepted")

	writeJSON(w, http.StatusOK, ackForRun(run))
}

// handleListRuns returns all runs for a project, newest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	runs, err := s.store.ListRuns(r.Context(), project)
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing runs"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project": project,
		"runs":    runs,
	})
}

// handleGetRun returns one run by id.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid run id"})

		return
	}

	run, err := s.store.GetRun(r.Context(), project, uint(id))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"run not found"})

		return
	}

	writeJSON(w, http.StatusOK, run)
}

// saveArchive streams the uploaded archive to the data directory under a
// collision-free name and returns its path and size.
func (s *server) saveArchive(project string, src io.Reader) (string, int64, error) {
	dir := filepath.Join(s.cfg.DataDir, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating project directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+".zip")

	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating archive file: %w", err)
	}

	size, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()

		return "", 0, fmt.Errorf("writing archive file: %w", err)
	}

	if err := dst.Close(); err != nil {
		return "", 0, fmt.Errorf("closing archive file: %w", err)
	}

	return path, size, nil
}

// fillFromMeta copies well-known string fields out of the raw metadata
// document. Unparseable metadata is kept verbatim but contributes nothing.
func fillFromMeta(run *store.Run, rawMeta string) {
	if rawMeta == "" {
		return
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		return
	}

	if v, ok := meta["trigger"].(string); ok {
		run.Trigger = v
	}

	if v, ok := meta["branch"].(string); ok {
		run.Branch = v
	}

	if v, ok := meta["commit"].(string); ok {
		run.Commit = v
	}
}

// ackForRun builds the wire acknowledgment for an accepted run.
func ackForRun(run *store.Run) runAck {
	return runAck{
		Project:   run.Project,
		RunID:     run.ID,
		UIURL:     fmt.Sprintf("/ui/%s/runs/%d", run.Project, run.ID),
		LatestURL: fmt.Sprintf("/ui/%s/latest", run.Project),
		Status:    run.Status,
	}
}
