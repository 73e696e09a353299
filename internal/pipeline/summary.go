package pipeline

import (
	"time"

	"lureingest/internal/domain"
	"lureingest/internal/ingest"
)

// ItemOutcome records what happened to one work item during a run.
type ItemOutcome struct {
	ItemID       string
	Source       string
	URL          string
	Status       domain.WorkStatus
	Colors       int
	Weights      int
	Rows         ingest.Counts
	ImagesFailed int
	Note         string
	Err          error
	Elapsed      time.Duration
}

// Summary is the result of one batch run. Items are in queue order.
type Summary struct {
	RunID           string
	StartedAt       time.Time
	Processed       int
	Succeeded       int
	Errored         int
	RowsInserted    int
	RowsSkipped     int
	RowsFailed      int
	ColorsProcessed int
	Elapsed         time.Duration
	Signalled       bool
	Items           []ItemOutcome
}

func (s *Summary) add(o ItemOutcome) {
	s.Processed++
	switch o.Status {
	case domain.WorkStatusDone:
		s.Succeeded++
	default:
		s.Errored++
	}
	s.RowsInserted += o.Rows.Inserted
	s.RowsSkipped += o.Rows.Skipped
	s.RowsFailed += o.Rows.Failed
	s.ColorsProcessed += o.Colors
	s.Items = append(s.Items, o)
}
