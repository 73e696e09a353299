package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"lureingest/internal/pipeline"
)

// StartRun launches a batch run in the background and answers 202 with its
// id, or 409 while one is running.
func (a *App) StartRun(w http.ResponseWriter, r *http.Request) {
	if !a.running.CompareAndSwap(false, true) {
		a.error(w, http.StatusConflict, "a run is already in progress")
		return
	}
	runID := uuid.NewString()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.running.Store(false)
		if a.runs != nil {
			defer func() { a.runs <- struct{}{} }()
		}
		_, err := a.Runner.RunWithID(a.BaseCtx, runID)
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			a.Logger.Warn().Str("run_id", runID).Msg("http: run skipped, another run is active")
		case err != nil:
			a.Logger.Error().Err(err).Str("run_id", runID).Msg("http: run failed")
		}
	}()
	a.json(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

type itemResponse struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	Colors       int    `json:"colors"`
	RowsInserted int    `json:"rows_inserted"`
	RowsSkipped  int    `json:"rows_skipped"`
	RowsFailed   int    `json:"rows_failed"`
	ImagesFailed int    `json:"images_failed"`
	Note         string `json:"note"`
}

type summaryResponse struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	ElapsedMS       int64          `json:"elapsed_ms"`
	Processed       int            `json:"processed"`
	Succeeded       int            `json:"succeeded"`
	Errored         int            `json:"errored"`
	RowsInserted    int            `json:"rows_inserted"`
	RowsSkipped     int            `json:"rows_skipped"`
	RowsFailed      int            `json:"rows_failed"`
	ColorsProcessed int            `json:"colors_processed"`
	Signalled       bool           `json:"rebuild_signalled"`
	Items           []itemResponse `json:"items"`
}

func toSummaryResponse(s pipeline.Summary) summaryResponse {
	out := summaryResponse{
		RunID:           s.RunID,
		StartedAt:       s.StartedAt.UTC(),
		ElapsedMS:       s.Elapsed.Milliseconds(),
		Processed:       s.Processed,
		Succeeded:       s.Succeeded,
		Errored:         s.Errored,
		RowsInserted:    s.RowsInserted,
		RowsSkipped:     s.RowsSkipped,
		RowsFailed:      s.RowsFailed,
		ColorsProcessed: s.ColorsProcessed,
		Signalled:       s.Signalled,
		Items:           make([]itemResponse, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, itemResponse{
			ID:           it.ItemID,
			Source:       it.Source,
			URL:          it.URL,
			Status:       string(it.Status),
			Colors:       it.Colors,
			RowsInserted: it.Rows.Inserted,
			RowsSkipped:  it.Rows.Skipped,
			RowsFailed:   it.Rows.Failed,
			ImagesFailed: it.ImagesFailed,
			Note:         it.Note,
		})
	}
	return out
}

// LastRun returns the summary of the most recent finished run.
func (a *App) LastRun(w http.ResponseWriter, r *http.Request) {
	s, ok := a.Runner.LastSummary()
	if !ok {
		a.error(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	a.json(w, http.StatusOK, toSummaryResponse(s))
}
