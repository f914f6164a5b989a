package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/pipeline"
	"git.home.luguber.info/inful/buildtrigger/internal/runlog"
)

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	// A client disconnect must not abort a run halfway through the workspace.
	ctx := context.WithoutCancel(r.Context())

	res, err := s.pipeline.TriggerRun(ctx, "http")
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			busy := ferrors.WrapError(err, ferrors.CategoryConflict, "build already in progress").
				Warning().
				WithContext("run_id", res.RunID).
				WithContext("stage", string(res.Stage)).
				Build()
			s.errorAdapter.WriteErrorResponse(w, r, busy)
			return
		}
		s.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to trigger build").Build())
		return
	}

	resp := BuildResponse{
		RunID:         res.RunID,
		CorrelationID: res.CorrelationID,
		Stage:         string(res.Stage),
	}
	status := http.StatusOK
	if res.Succeeded() {
		resp.Status = "success"
		resp.Message = "Build completed successfully"
		resp.Artifact = "/artifacts"
	} else {
		status = http.StatusInternalServerError
		resp.Status = "error"
		resp.Message = fmt.Sprintf("%s failed: %s", res.FailedStage, res.Message)
		resp.FailedStage = string(res.FailedStage)
		resp.Timeout = res.Timeout
	}
	s.writeJSON(w, r, status, resp)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	entries, err := s.log.ReadAll(r.Context())
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ErrorsResponse{Errors: runlog.Text(entries)})
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	path, err := s.pipeline.Artifact()
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	// The open descriptor keeps serving this archive even if a newer one is renamed over it.
	f, err := os.Open(path) // #nosec G304 -- path is produced by the packager
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open build artifact").
				WithContext("path", path).
				Build())
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat build artifact").
				WithContext("path", path).
				Build())
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, artErr := s.pipeline.Artifact()
	s.writeJSON(w, r, http.StatusOK, StatusResponse{
		Run:               s.pipeline.Current(),
		ArtifactAvailable: artErr == nil,
		Concurrency:       string(s.pipeline.Settings().Concurrency),
		Timestamp:         time.Now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).Seconds(),
		Timestamp: time.Now().UTC(),
	})
}

// writeJSON encodes into a buffer first so a failed encode never sends a partial body.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to encode response").Build())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("failed writing JSON response body", logfields.Error(err))
	}
}
