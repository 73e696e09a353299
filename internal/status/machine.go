// Package status advances work items through pending, in_progress and the
// terminal done/error states.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"lureingest/internal/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminal          = errors.New("item already finished in this run")
)

// DefaultNoteLimit caps the diagnostic note in runes.
const DefaultNoteLimit = 500

var transitions = map[domain.WorkStatus][]domain.WorkStatus{
	domain.WorkStatusPending:    {domain.WorkStatusInProgress},
	domain.WorkStatusInProgress: {domain.WorkStatusDone, domain.WorkStatusError},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to domain.WorkStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine writes transitions to the queue and remembers, for the lifetime of
// one run, every item it has already finished.
type Machine struct {
	queue     domain.TaskQueue
	noteLimit int

	mu      sync.Mutex
	current map[string]domain.WorkStatus
}

func NewMachine(queue domain.TaskQueue, noteLimit int) *Machine {
	if noteLimit <= 0 {
		noteLimit = DefaultNoteLimit
	}
	return &Machine{queue: queue, noteLimit: noteLimit, current: map[string]domain.WorkStatus{}}
}

// Begin moves a pending item to in_progress.
func (m *Machine) Begin(ctx context.Context, item domain.WorkItem) error {
	from := item.Status
	if from == "" {
		from = domain.WorkStatusPending
	}
	return m.move(ctx, item.ID, from, domain.WorkStatusInProgress, "")
}

// Complete marks an in-progress item done with a summary note.
func (m *Machine) Complete(ctx context.Context, item domain.WorkItem, note string) error {
	return m.move(ctx, item.ID, domain.WorkStatusInProgress, domain.WorkStatusDone, note)
}

// Fail marks an in-progress item as errored with a truncated diagnostic.
func (m *Machine) Fail(ctx context.Context, item domain.WorkItem, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return m.move(ctx, item.ID, domain.WorkStatusInProgress, domain.WorkStatusError, Truncate(msg, m.noteLimit))
}

// Status returns the state the machine last wrote for id.
func (m *Machine) Status(id string) (domain.WorkStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.current[id]
	return s, ok
}

func (m *Machine) move(ctx context.Context, id string, from, to domain.WorkStatus, note string) error {
	m.mu.Lock()
	if cur, ok := m.current[id]; ok {
		if cur.Terminal() {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s is %s", ErrTerminal, id, cur)
		}
		from = cur
	}
	m.mu.Unlock()

	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := m.queue.SetStatus(ctx, id, to, note); err != nil {
		return fmt.Errorf("set status %s: %w", to, err)
	}

	m.mu.Lock()
	m.current[id] = to
	m.mu.Unlock()
	return nil
}

// DoneNote summarizes a successful item.
func DoneNote(colors, weights, inserted, skipped, failed int) string {
	return fmt.Sprintf("%d colors × %d weights = %d rows inserted (%d skipped, %d failed)", colors, weights, inserted, skipped, failed)
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
