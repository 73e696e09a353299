// Package sqlite stores the work queue and the catalog in a single SQLite
// file for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"lureingest/internal/domain"
	"lureingest/internal/infra"
	"lureingest/internal/sqlinline"
)

// Store implements domain.TaskQueue, domain.QueueAdmin and domain.Catalog.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA foreign_keys = ON;`, `PRAGMA journal_mode = WAL;`} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.exec(ctx, sqlinline.QLiteSchema)
	return err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	marker, body, err := infra.ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, body, args...)
	if err != nil {
		s.logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	s.logger.Debug().Msgf("sql[%s] exec", marker)
	return res, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	marker, body, err := infra.ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Msgf("sql[%s] query", marker)
	return s.db.QueryContext(ctx, body, args...)
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	rows, err := s.query(ctx, sqlinline.QLiteListPending, limit, limit)
	if err != nil {
		return nil, classify("queue list pending", err)
	}
	defer rows.Close()

	var items []domain.WorkItem
	for rows.Next() {
		var it domain.WorkItem
		var status string
		if err := rows.Scan(&it.ID, &it.URL, &it.Name, &it.Source, &status, &it.Note, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, classify("queue scan", err)
		}
		it.Status = domain.WorkStatus(status)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("queue list pending", err)
	}
	return items, nil
}

func (s *Store) SetStatus(ctx context.Context, id string, status domain.WorkStatus, note string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidWorkStatus, status)
	}
	res, err := s.exec(ctx, sqlinline.QLiteSetStatus, string(status), note, s.now(), id)
	if err != nil {
		return classify("queue set status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("work item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) Enqueue(ctx context.Context, item domain.WorkItem) (string, error) {
	id := uuid.NewString()
	now := s.now()
	_, err := s.exec(ctx, sqlinline.QLiteEnqueue, id,
		strings.TrimSpace(item.URL), strings.TrimSpace(item.Name), strings.TrimSpace(item.Source), now, now)
	if err != nil {
		return "", classify("queue enqueue", err)
	}
	return id, nil
}

func (s *Store) Reset(ctx context.Context, f domain.ResetFilter) (int, error) {
	now := s.now()
	stale := f.StaleAfter > 0
	res, err := s.exec(ctx, sqlinline.QLiteReset, now, f.Errors, stale, now.Add(-f.StaleAfter), f.Source, f.Source)
	if err != nil {
		return 0, classify("queue reset", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[domain.WorkStatus]int, error) {
	rows, err := s.query(ctx, sqlinline.QLiteCountByStatus)
	if err != nil {
		return nil, classify("queue count", err)
	}
	defer rows.Close()
	out := map[domain.WorkStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify("queue count scan", err)
		}
		out[domain.WorkStatus(status)] = n
	}
	return out, classify("queue count", rows.Err())
}

func (s *Store) Exists(ctx context.Context, key domain.DedupKey) (bool, error) {
	rows, err := s.query(ctx, sqlinline.QLiteCatalogExists, key.Source, key.Slug, key.ColorName, nullFloat(key.Weight))
	if err != nil {
		return false, classify("catalog exists", err)
	}
	defer rows.Close()
	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, classify("catalog exists", err)
		}
	}
	return exists, classify("catalog exists", rows.Err())
}

func (s *Store) Insert(ctx context.Context, row domain.CanonicalRow) error {
	fish := row.TargetFish
	if fish == nil {
		fish = []string{}
	}
	fishJSON, err := json.Marshal(fish)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, sqlinline.QLiteCatalogInsert,
		row.Source, row.Slug, row.Name, row.NameKana, row.LureType, string(fishJSON), row.Description,
		row.Price, row.ColorName, nullFloat(row.Weight), nullFloat(row.Length), row.ImageURL, row.SourceURL, s.now())
	if err != nil {
		return classify("catalog insert", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicateRow
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// classify treats constraint and type errors as row-level and everything
// else (locked, I/O, closed database) as a connectivity failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrTooBig, sqlite3.ErrRange:
			return err
		}
	}
	return domain.Unavailable(op, err)
}

var (
	_ domain.TaskQueue  = (*Store)(nil)
	_ domain.QueueAdmin = (*Store)(nil)
	_ domain.Catalog    = (*Store)(nil)
)
