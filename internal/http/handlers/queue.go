package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"lureingest/internal/domain"
)

// QueueCounts returns the number of work items per status.
func (a *App) QueueCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Queue.CountByStatus(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("http: count queue failed")
		a.error(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	out := map[string]int{}
	for _, s := range []domain.WorkStatus{domain.WorkStatusPending, domain.WorkStatusInProgress, domain.WorkStatusDone, domain.WorkStatusError} {
		out[string(s)] = counts[s]
	}
	a.json(w, http.StatusOK, out)
}

type enqueueRequest struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Name   string `json:"name"`
}

// Enqueue adds a pending work item.
func (a *App) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	req.URL = strings.TrimSpace(req.URL)
	if req.Source == "" || req.URL == "" {
		a.error(w, http.StatusBadRequest, "source and url are required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || !u.IsAbs() || u.Host == "" {
		a.error(w, http.StatusBadRequest, "url must be absolute")
		return
	}
	if len(a.Sources) > 0 && !slices.Contains(a.Sources, req.Source) {
		a.error(w, http.StatusUnprocessableEntity, "unknown source")
		return
	}
	id, err := a.Queue.Enqueue(r.Context(), domain.WorkItem{URL: req.URL, Name: req.Name, Source: req.Source})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("http: enqueue failed")
		a.error(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"id": id, "status": string(domain.WorkStatusPending)})
}
