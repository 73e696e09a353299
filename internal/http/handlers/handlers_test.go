package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lureingest/internal/adapter/memstore"
	"lureingest/internal/domain"
	"lureingest/internal/ingest"
	"lureingest/internal/pipeline"
	"lureingest/internal/storage"
)

type stubRunner struct {
	mu      sync.Mutex
	ids     []string
	release chan struct{}
	last    *pipeline.Summary
}

func (s *stubRunner) RunWithID(ctx context.Context, runID string) (pipeline.Summary, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, runID)
	return pipeline.Summary{RunID: runID}, nil
}

func (s *stubRunner) LastSummary() (pipeline.Summary, bool) {
	if s.last == nil {
		return pipeline.Summary{}, false
	}
	return *s.last, true
}

func newTestApp(runner Runner) (*App, *memstore.Queue) {
	q := memstore.NewQueue()
	app := NewApp(context.Background(), q, runner, []string{"maker"}, zerolog.Nop())
	return app, q
}

func TestQueueCountsAndEnqueue(t *testing.T) {
	app, q := newTestApp(&stubRunner{})

	body := `{"source":"maker","url":"https://maker.test/p/1","name":"Minnow"}`
	rec := httptest.NewRecorder()
	app.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/v1/queue", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Enqueue status = %d, body %s", rec.Code, rec.Body)
	}
	var created map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&created)
	if it, ok := q.Get(created["id"]); !ok || it.Source != "maker" || it.Name != "Minnow" {
		t.Fatalf("enqueued item = %+v, %v", it, ok)
	}

	rec = httptest.NewRecorder()
	app.QueueCounts(rec, httptest.NewRequest(http.MethodGet, "/v1/queue", nil))
	var counts map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if counts["pending"] != 1 || counts["error"] != 0 || len(counts) != 4 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestEnqueueValidation(t *testing.T) {
	app, _ := newTestApp(&stubRunner{})
	cases := map[string]int{
		`not json`:                                     http.StatusBadRequest,
		`{"source":"maker"}`:                           http.StatusBadRequest,
		`{"source":"maker","url":"/relative"}`:         http.StatusBadRequest,
		`{"source":"other","url":"https://x.test/p"}`: http.StatusUnprocessableEntity,
	}
	for body, want := range cases {
		rec := httptest.NewRecorder()
		app.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/v1/queue", strings.NewReader(body)))
		if rec.Code != want {
			t.Fatalf("Enqueue(%s) = %d, want %d", body, rec.Code, want)
		}
	}
}

func TestStartRunConflictsWhileRunning(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	app, _ := newTestApp(runner)
	app.runs = make(chan struct{}, 1)

	rec := httptest.NewRecorder()
	app.StartRun(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first StartRun = %d", rec.Code)
	}
	var started map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&started)

	rec = httptest.NewRecorder()
	app.StartRun(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second StartRun = %d, want 409", rec.Code)
	}

	close(runner.release)
	select {
	case <-app.runs:
	case <-time.After(2 * time.Second):
		t.Fatalf("background run did not finish")
	}
	if len(runner.ids) != 1 || runner.ids[0] != started["run_id"] {
		t.Fatalf("runner ids = %v, want [%s]", runner.ids, started["run_id"])
	}
}

func TestWaitBlocksUntilBackgroundRunReturns(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	app, _ := newTestApp(runner)

	rec := httptest.NewRecorder()
	app.StartRun(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("StartRun = %d", rec.Code)
	}

	done := make(chan struct{})
	go func() {
		app.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("Wait returned while the run was still active")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait did not return after the run finished")
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.ids) != 1 {
		t.Fatalf("runner ids = %v, want one run", runner.ids)
	}
}

func TestLastRun(t *testing.T) {
	runner := &stubRunner{}
	app, _ := newTestApp(runner)

	rec := httptest.NewRecorder()
	app.LastRun(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/last", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("LastRun without runs = %d, want 404", rec.Code)
	}

	runner.last = &pipeline.Summary{
		RunID: "r1", Processed: 1, Succeeded: 1, RowsInserted: 4, Elapsed: 1500 * time.Millisecond,
		Items: []pipeline.ItemOutcome{{ItemID: "i1", Status: domain.WorkStatusDone, Colors: 2, Rows: ingest.Counts{Attempted: 4, Inserted: 4}}},
	}
	rec = httptest.NewRecorder()
	app.LastRun(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/last", nil))
	var got summaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "r1" || got.ElapsedMS != 1500 || len(got.Items) != 1 || got.Items[0].Status != "done" || got.Items[0].RowsInserted != 4 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestStaticSetsCacheControl(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "products"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "products", "a.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := Static("/static/", dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/products/a.jpg", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Cache-Control") != storage.CacheControl {
		t.Fatalf("static = %d, cache-control %q", rec.Code, rec.Header().Get("Cache-Control"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/products/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("directory listing = %d, want 404", rec.Code)
	}
}
