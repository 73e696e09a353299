package domain

import "context"

// TaskQueue is the work item store consumed by the pipeline.
type TaskQueue interface {
	ListPending(ctx context.Context, limit int) ([]WorkItem, error)
	SetStatus(ctx context.Context, id string, status WorkStatus, note string) error
}

// QueueAdmin covers the operator actions around the queue.
type QueueAdmin interface {
	Enqueue(ctx context.Context, item WorkItem) (string, error)
	Reset(ctx context.Context, filter ResetFilter) (int, error)
	CountByStatus(ctx context.Context) (map[WorkStatus]int, error)
}

// Catalog stores canonical rows keyed by DedupKey. Insert returns
// ErrDuplicateRow when the key already exists.
type Catalog interface {
	Exists(ctx context.Context, key DedupKey) (bool, error)
	Insert(ctx context.Context, row CanonicalRow) error
}

// ObjectStore persists blobs and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
