// Package rebuild notifies the downstream site build that the catalog
// changed.
package rebuild

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lureingest/internal/retry"
)

// Event is the JSON body posted to the webhook.
type Event struct {
	Event        string `json:"event"`
	RunID        string `json:"run_id"`
	RowsInserted int    `json:"rows_inserted"`
	Items        int    `json:"items_succeeded"`
}

// Options configures a Webhook.
type Options struct {
	URL         string
	MaxAttempts int
	Backoff     time.Duration
	Client      *http.Client
}

// Webhook posts Event to a build hook. Only HTTP 429 is retried.
type Webhook struct {
	url    string
	client *http.Client
	policy retry.Policy
	logger zerolog.Logger
}

// ErrRateLimited is returned when every attempt hit HTTP 429.
var ErrRateLimited = errors.New("rebuild webhook rate limited")

func NewWebhook(opts Options, logger zerolog.Logger) *Webhook {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	w := &Webhook{url: strings.TrimSpace(opts.URL), client: client, logger: logger}
	w.policy = retry.Policy{
		MaxAttempts: attempts,
		Delay:       backoff,
		Backoff:     retry.Linear,
		Retryable:   func(err error) bool { return errors.Is(err, ErrRateLimited) },
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.Warn().Int("attempt", attempt).Dur("wait", wait).Msg("rebuild: rate limited, backing off")
		},
	}
	return w
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

// Fire posts ev once, retrying on 429 only.
func (w *Webhook) Fire(ctx context.Context, ev Event) error {
	if !w.Enabled() {
		return nil
	}
	if ev.Event == "" {
		ev.Event = "catalog.updated"
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rebuild: encode event: %w", err)
	}
	err = retry.Do(ctx, w.policy, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("rebuild: webhook status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.logger.Info().Str("run_id", ev.RunID).Int("rows_inserted", ev.RowsInserted).Msg("rebuild: signal sent")
	return nil
}
