package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), a.config.PageSize, a.config.MaxPageSize)

	runs, err := a.store.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("store unavailable"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRunArchive redirects to a short-lived presigned URL for the raw
// payload captured during the run.
func (a *API) handleRunArchive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}

	run, err := a.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("store unavailable"))
		return
	}
	if run == nil || run.ArchiveURL == "" || a.archives == nil {
		respondError(w, http.StatusNotFound, errors.New("no archive for this run"))
		return
	}

	bucket, key, ok := splitObjectURL(run.ArchiveURL)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("no archive for this run"))
		return
	}

	location, err := a.archives.PresignGet(r.Context(), bucket, key, 15*time.Minute)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("archive storage unavailable"))
		return
	}

	http.Redirect(w, r, location, http.StatusFound)
}

// splitObjectURL splits an s3://bucket/key URL into its parts.
func splitObjectURL(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func (a *API) handleRunsPage(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.RecentRuns(r.Context(), a.config.PageSize)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	rendered, err := a.renderer.Render("runs.tmpl", map[string]any{"Runs": runs})
	if err != nil {
		http.Error(w, "render failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(rendered))
}
