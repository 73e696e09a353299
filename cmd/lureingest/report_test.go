package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"lureingest/internal/domain"
	"lureingest/internal/ingest"
	"lureingest/internal/pipeline"
)

func TestRenderSummary(t *testing.T) {
	sum := pipeline.Summary{
		RunID:           "run-1",
		Processed:       2,
		Succeeded:       1,
		Errored:         1,
		RowsInserted:    6,
		ColorsProcessed: 3,
		Elapsed:         1500 * time.Millisecond,
		Signalled:       true,
		Items: []pipeline.ItemOutcome{
			{Source: "megabass", Status: domain.WorkStatusDone, Colors: 3, Rows: ingest.Counts{Inserted: 6}, Note: "3 colors × 2 weights = 6 rows inserted (0 skipped, 0 failed)"},
			{Source: "jackall", Status: domain.WorkStatusError, Err: errors.New("adapter jackall: no product name")},
		},
	}
	var buf bytes.Buffer
	renderSummary(&buf, sum)
	out := buf.String()
	for _, want := range []string{"megabass", "jackall", "no product name", "Run:       run-1", "Processed: 2 in 1.5s", "Rebuild:   yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCountsListsEveryStatus(t *testing.T) {
	var buf bytes.Buffer
	renderCounts(&buf, map[domain.WorkStatus]int{domain.WorkStatusPending: 4, domain.WorkStatusError: 1})
	out := buf.String()
	for _, want := range []string{"pending", "in_progress", "done", "error"} {
		if !strings.Contains(out, want) {
			t.Fatalf("counts missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "5") {
		t.Fatalf("counts missing total:\n%s", out)
	}
}
