// Package memstore keeps the queue, catalog and object store in memory. It
// backs dry runs and tests; nothing survives the process.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lureingest/internal/domain"
)

// Queue is an in-memory domain.TaskQueue and domain.QueueAdmin.
type Queue struct {
	mu    sync.Mutex
	items []*domain.WorkItem
	now   func() time.Time
}

func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

func (q *Queue) Enqueue(_ context.Context, item domain.WorkItem) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = domain.WorkStatusPending
	}
	now := q.now()
	item.CreatedAt, item.UpdatedAt = now, now
	q.items = append(q.items, &item)
	return item.ID, nil
}

func (q *Queue) ListPending(_ context.Context, limit int) ([]domain.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.WorkItem
	for _, it := range q.items {
		if it.Status != domain.WorkStatusPending {
			continue
		}
		out = append(out, *it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *Queue) SetStatus(_ context.Context, id string, status domain.WorkStatus, note string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidWorkStatus, status)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			it.Status = status
			it.Note = note
			it.UpdatedAt = q.now()
			return nil
		}
	}
	return domain.ErrNotFound
}

func (q *Queue) Reset(_ context.Context, f domain.ResetFilter) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	cutoff := q.now().Add(-f.StaleAfter)
	for _, it := range q.items {
		if f.Source != "" && it.Source != f.Source {
			continue
		}
		match := (f.Errors && it.Status == domain.WorkStatusError) ||
			(f.StaleAfter > 0 && it.Status == domain.WorkStatusInProgress && it.UpdatedAt.Before(cutoff))
		if !match {
			continue
		}
		it.Status = domain.WorkStatusPending
		it.UpdatedAt = q.now()
		n++
	}
	return n, nil
}

func (q *Queue) CountByStatus(context.Context) (map[domain.WorkStatus]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := map[domain.WorkStatus]int{}
	for _, it := range q.items {
		out[it.Status]++
	}
	return out, nil
}

// Get returns a copy of the item with id.
func (q *Queue) Get(id string) (domain.WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			return *it, true
		}
	}
	return domain.WorkItem{}, false
}

// Catalog is an in-memory domain.Catalog. Insert is insert-or-ignore.
type Catalog struct {
	mu   sync.Mutex
	rows map[rowKey]domain.CanonicalRow
	// InsertErr, when set, is returned for keys it yields non-nil for.
	InsertErr func(domain.CanonicalRow) error
	// Down simulates a lost connection.
	Down bool
}

// rowKey is the comparable form of domain.DedupKey.
type rowKey struct {
	source, slug, color string
	hasWeight           bool
	weight              float64
}

func keyOf(k domain.DedupKey) rowKey {
	rk := rowKey{source: k.Source, slug: k.Slug, color: k.ColorName}
	if k.Weight != nil {
		rk.hasWeight, rk.weight = true, *k.Weight
	}
	return rk
}

func NewCatalog() *Catalog {
	return &Catalog{rows: map[rowKey]domain.CanonicalRow{}}
}

func (c *Catalog) Exists(_ context.Context, key domain.DedupKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return false, domain.Unavailable("catalog exists", errors.New("connection refused"))
	}
	_, ok := c.rows[keyOf(key)]
	return ok, nil
}

func (c *Catalog) Insert(_ context.Context, row domain.CanonicalRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return domain.Unavailable("catalog insert", errors.New("connection refused"))
	}
	if c.InsertErr != nil {
		if err := c.InsertErr(row); err != nil {
			return err
		}
	}
	k := keyOf(row.Key())
	if _, ok := c.rows[k]; ok {
		return domain.ErrDuplicateRow
	}
	c.rows[k] = row
	return nil
}

// Rows returns every stored row ordered by source, slug, color and weight.
func (c *Catalog) Rows() []domain.CanonicalRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]rowKey, 0, len(c.rows))
	for k := range c.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.source != b.source:
			return a.source < b.source
		case a.slug != b.slug:
			return a.slug < b.slug
		case a.color != b.color:
			return a.color < b.color
		case a.hasWeight != b.hasWeight:
			return !a.hasWeight
		}
		return a.weight < b.weight
	})
	out := make([]domain.CanonicalRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.rows[k])
	}
	return out
}

// Objects is an in-memory domain.ObjectStore.
type Objects struct {
	mu      sync.Mutex
	BaseURL string
	objects map[string]Object
	// PutErr, when set, fails uploads for keys it yields non-nil for.
	PutErr func(key string) error
}

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

func NewObjects(baseURL string) *Objects {
	return &Objects{BaseURL: baseURL, objects: map[string]Object{}}
}

func (o *Objects) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.PutErr != nil {
		if err := o.PutErr(key); err != nil {
			return "", err
		}
	}
	o.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return o.BaseURL + "/" + key, nil
}

// Get returns the object stored under key.
func (o *Objects) Get(key string) (Object, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, ok := o.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (o *Objects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

var (
	_ domain.TaskQueue   = (*Queue)(nil)
	_ domain.QueueAdmin  = (*Queue)(nil)
	_ domain.Catalog     = (*Catalog)(nil)
	_ domain.ObjectStore = (*Objects)(nil)
)
