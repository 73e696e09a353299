package rebuild

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFireRetriesOn429(t *testing.T) {
	var calls int32
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(Options{URL: srv.URL, MaxAttempts: 3, Backoff: time.Millisecond}, zerolog.Nop())
	if err := hook.Fire(context.Background(), Event{RunID: "r1", RowsInserted: 4}); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if got.Event != "catalog.updated" || got.RunID != "r1" || got.RowsInserted != 4 {
		t.Fatalf("payload = %+v", got)
	}
}

func TestFireGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	hook := NewWebhook(Options{URL: srv.URL, MaxAttempts: 2, Backoff: time.Millisecond}, zerolog.Nop())
	err := hook.Fire(context.Background(), Event{})
	if !errors.Is(err, ErrRateLimited) || calls != 2 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestFireDoesNotRetryOtherStatuses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := NewWebhook(Options{URL: srv.URL, MaxAttempts: 3, Backoff: time.Millisecond}, zerolog.Nop())
	if err := hook.Fire(context.Background(), Event{}); err == nil || calls != 1 {
		t.Fatalf("err = %v calls = %d, want single failed call", err, calls)
	}
}

func TestFireDisabledIsNoop(t *testing.T) {
	hook := NewWebhook(Options{}, zerolog.Nop())
	if hook.Enabled() {
		t.Fatalf("hook without url should be disabled")
	}
	if err := hook.Fire(context.Background(), Event{}); err != nil {
		t.Fatalf("Fire: %v", err)
	}
}
