package domain

import "time"

// WorkStatus enumerates work item lifecycle states.
type WorkStatus string

const (
	WorkStatusPending    WorkStatus = "pending"
	WorkStatusInProgress WorkStatus = "in_progress"
	WorkStatusDone       WorkStatus = "done"
	WorkStatusError      WorkStatus = "error"
)

// Valid reports whether s is one of the known states.
func (s WorkStatus) Valid() bool {
	switch s {
	case WorkStatusPending, WorkStatusInProgress, WorkStatusDone, WorkStatusError:
		return true
	}
	return false
}

// Terminal reports whether s ends a run for an item.
func (s WorkStatus) Terminal() bool {
	return s == WorkStatusDone || s == WorkStatusError
}

// WorkItem is one queued product page waiting to be ingested.
type WorkItem struct {
	ID        string
	URL       string
	Name      string
	Source    string
	Status    WorkStatus
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResetFilter selects work items an operator wants moved back to pending.
// StaleAfter applies to in-progress items only; zero disables that branch.
type ResetFilter struct {
	Errors     bool
	StaleAfter time.Duration
	Source     string
}
