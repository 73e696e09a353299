// Package ingest writes canonical rows that are not yet in the catalog.
package ingest

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"lureingest/internal/domain"
)

// Counts aggregates one Write call.
type Counts struct {
	Attempted int `json:"attempted"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// AllFailed reports whether rows were attempted and every one of them failed.
func (c Counts) AllFailed() bool {
	return c.Attempted > 0 && c.Failed == c.Attempted
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Attempted += o.Attempted
	c.Inserted += o.Inserted
	c.Skipped += o.Skipped
	c.Failed += o.Failed
}

// Writer checks each row against the catalog and inserts the missing ones.
type Writer struct {
	catalog domain.Catalog
	logger  zerolog.Logger
}

func NewWriter(catalog domain.Catalog, logger zerolog.Logger) *Writer {
	return &Writer{catalog: catalog, logger: logger}
}

// Write persists rows one by one. A single failed insert is counted and
// logged; a store connectivity failure stops the loop and is returned
// together with the counts so far.
func (w *Writer) Write(ctx context.Context, rows []domain.CanonicalRow) (Counts, error) {
	var c Counts
	for _, row := range rows {
		c.Attempted++
		key := row.Key()

		exists, err := w.catalog.Exists(ctx, key)
		if err != nil {
			if !errors.Is(err, domain.ErrStoreUnavailable) {
				err = domain.Unavailable("catalog exists", err)
			}
			return c, err
		}
		if exists {
			c.Skipped++
			w.logger.Debug().Str("key", key.String()).Msg("ingest: row exists, skipping")
			continue
		}

		err = w.catalog.Insert(ctx, row)
		switch {
		case err == nil:
			c.Inserted++
			w.logger.Debug().Str("key", key.String()).Msg("ingest: row inserted")
		case errors.Is(err, domain.ErrDuplicateRow):
			c.Skipped++
			w.logger.Debug().Str("key", key.String()).Msg("ingest: row inserted concurrently, skipping")
		case errors.Is(err, domain.ErrStoreUnavailable):
			return c, err
		default:
			c.Failed++
			rowErr := &domain.RowInsertError{Key: key, Err: err}
			w.logger.Warn().Err(rowErr).Msg("ingest: row insert failed")
		}
	}
	return c, nil
}
