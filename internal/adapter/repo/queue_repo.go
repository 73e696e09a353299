package repo

import (
	"context"
	"fmt"
	"strings"

	"lureingest/internal/domain"
	"lureingest/internal/infra"
	"lureingest/internal/sqlinline"
)

// QueueRepositoryPG implements domain.TaskQueue and domain.QueueAdmin.
type QueueRepositoryPG struct {
	db infra.SQLExecutor
}

// NewQueueRepository creates a queue repository backed by PostgreSQL.
func NewQueueRepository(db infra.SQLExecutor) *QueueRepositoryPG {
	return &QueueRepositoryPG{db: db}
}

// ListPending returns pending items oldest first; limit 0 means all.
func (r *QueueRepositoryPG) ListPending(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	rows, err := r.db.Query(ctx, sqlinline.QQueueListPending, limit)
	if err != nil {
		return nil, classify("queue list pending", err)
	}
	defer rows.Close()

	var items []domain.WorkItem
	for rows.Next() {
		var it domain.WorkItem
		if err := rows.Scan(&it.ID, &it.URL, &it.Name, &it.Source, &it.Status, &it.Note, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, classify("queue scan", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("queue list pending", err)
	}
	return items, nil
}

// SetStatus writes status and note for id.
func (r *QueueRepositoryPG) SetStatus(ctx context.Context, id string, status domain.WorkStatus, note string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidWorkStatus, status)
	}
	tag, err := r.db.Exec(ctx, sqlinline.QQueueSetStatus, id, string(status), note)
	if err != nil {
		return classify("queue set status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("work item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Enqueue inserts a pending item and returns its id.
func (r *QueueRepositoryPG) Enqueue(ctx context.Context, item domain.WorkItem) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, sqlinline.QQueueEnqueue,
		strings.TrimSpace(item.URL),
		strings.TrimSpace(item.Name),
		strings.TrimSpace(item.Source),
	).Scan(&id)
	if err != nil {
		return "", classify("queue enqueue", err)
	}
	return id, nil
}

// Reset moves matching error and stale in_progress items back to pending.
func (r *QueueRepositoryPG) Reset(ctx context.Context, f domain.ResetFilter) (int, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QQueueReset, f.Errors, f.StaleAfter.Seconds(), f.Source)
	if err != nil {
		return 0, classify("queue reset", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountByStatus returns the number of items in each status.
func (r *QueueRepositoryPG) CountByStatus(ctx context.Context) (map[domain.WorkStatus]int, error) {
	rows, err := r.db.Query(ctx, sqlinline.QQueueCountByStatus)
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
	if err := rows.Err(); err != nil {
		return nil, classify("queue count", err)
	}
	return out, nil
}

var (
	_ domain.TaskQueue  = (*QueueRepositoryPG)(nil)
	_ domain.QueueAdmin = (*QueueRepositoryPG)(nil)
)
