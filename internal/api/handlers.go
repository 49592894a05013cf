package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/export"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/store"
)

const maxListLimit = 500

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RunFilter{
		MethodologyVersion: q.Get("methodology"),
		Status:             model.RunStatus(q.Get("status")),
	}
	switch f.Status {
	case "", model.RunStatusRunning, model.RunStatusComplete, model.RunStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", f.Status))
		return
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit"), 0, maxListLimit); err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	if f.Offset, err = intParam(q.Get("offset"), 0, -1); err != nil {
		writeError(w, http.StatusBadRequest, "offset: "+err.Error())
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), f)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.LatestCompletedRun(r.Context(), r.URL.Query().Get("methodology"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	writeJSON(w, http.StatusOK, export.NewDocument(run, s.now()))
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, export.NewDocument(run, s.now()))
}

func (s *Server) getCountry(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))
	cs := run.Score(code)
	if cs == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("country %s not in run %s", code, run.ID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessment_id":       run.ID,
		"methodology_version": run.MethodologyVersion,
		"country":             cs,
	})
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, run); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", run.ID+".csv", buf.Bytes())
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, run); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", run.ID+".xlsx", buf.Bytes())
}

// loadRun fetches the {runID} run. Only completed runs are served;
// running and failed runs have no scores worth showing.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*model.AssessmentRun, bool) {
	id := chi.URLParam(r, "runID")
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, false
	}
	if run.Status != model.RunStatusComplete {
		writeError(w, http.StatusConflict, fmt.Sprintf("run %s is %s", id, run.Status))
		return nil, false
	}
	return run, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// intParam parses an optional non-negative integer. limit < 0 means no
// upper bound.
func intParam(raw string, def, limit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.New("must be a non-negative integer")
	}
	if limit >= 0 && n > limit {
		return 0, eris.Errorf("must be <= %d", limit)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
