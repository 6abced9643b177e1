package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"crosslink/internal/logging"
	"crosslink/internal/lookup"
	"crosslink/internal/services"
)

const defaultRunsLimit = 20

func (h *handlers) handleSync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync not configured")
		return
	}
	report, err := h.deps.Syncer.RunScheduledSync(r.Context(), 0)
	if err != nil {
		if errors.Is(err, services.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "scheduled sync failed", "sync_failed",
			logging.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.deps.Store != nil {
		if err := h.deps.Store.RecordSyncRuns(r.Context(), report.AuditRows()); err != nil {
			logging.WarnWithContext(logging.WithContext(r.Context(), h.logger), "sync audit not recorded", "sync_audit_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "sync history will miss this run"),
			)
		}
	}
	writeJSON(w, http.StatusOK, SyncResponse{RunID: report.RunID, Results: report.Results})
}

func (h *handlers) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeJSON(w, http.StatusOK, SyncRunsResponse{Runs: []SyncRun{}})
		return
	}
	limit := defaultRunsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := h.deps.Store.ListSyncRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FromSyncRuns(runs))
}

func (h *handlers) handleLink(w http.ResponseWriter, r *http.Request) {
	if h.deps.Lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "lookup not configured")
		return
	}
	req := lookup.Request{
		CatalogAKey: strings.TrimSpace(chi.URLParam(r, "key")),
		Title:       strings.TrimSpace(r.URL.Query().Get("title")),
		NativeTitle: strings.TrimSpace(r.URL.Query().Get("native")),
		Season:      1,
	}
	if raw := chi.URLParam(r, "season"); raw != "" {
		season, err := strconv.Atoi(raw)
		if err != nil || season < 1 {
			writeError(w, http.StatusBadRequest, "invalid season")
			return
		}
		req.Season = season
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		req.Year = year
	}

	var (
		link *lookup.Link
		err  error
	)
	if req.Title != "" {
		link, err = h.deps.Lookup.NewSession().Lookup(r.Context(), req)
	} else {
		link, err = h.deps.Lookup.GetSeasonLink(r.Context(), req.CatalogAKey, req.Season)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	if link == nil {
		writeError(w, http.StatusNotFound, "link not cached")
		return
	}
	writeJSON(w, http.StatusOK, FromLink(link))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
