package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"lureingest/internal/domain"
	"lureingest/internal/pipeline"
	"lureingest/internal/status"
)

const noteWidth = 60

// renderSummary writes one line per item followed by the run totals.
func renderSummary(w io.Writer, s pipeline.Summary) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Source", "Status", "Colors", "Inserted", "Skipped", "Failed", "Images", "Note"})
	for i, it := range s.Items {
		note := it.Note
		if note == "" && it.Err != nil {
			note = it.Err.Error()
		}
		t.AppendRow(table.Row{
			i + 1, it.Source, it.Status, it.Colors,
			it.Rows.Inserted, it.Rows.Skipped, it.Rows.Failed, imagesCell(it.ImagesFailed),
			status.Truncate(note, noteWidth),
		})
	}
	t.AppendFooter(table.Row{
		"", "", fmt.Sprintf("%d ok / %d err", s.Succeeded, s.Errored), s.ColorsProcessed,
		s.RowsInserted, s.RowsSkipped, s.RowsFailed, "", "",
	})
	t.SetColumnConfigs(numericColumns(1, 4, 5, 6, 7))
	fmt.Fprintln(w, t.Render())

	signalled := "no"
	if s.Signalled {
		signalled = "yes"
	}
	fmt.Fprintf(w, "Run:       %s\n", s.RunID)
	fmt.Fprintf(w, "Processed: %d in %s\n", s.Processed, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Rebuild:   %s\n", signalled)
}

// renderCounts writes the queue size per status in lifecycle order.
func renderCounts(w io.Writer, counts map[domain.WorkStatus]int) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Status", "Items"})
	total := 0
	for _, st := range []domain.WorkStatus{domain.WorkStatusPending, domain.WorkStatusInProgress, domain.WorkStatusDone, domain.WorkStatusError} {
		t.AppendRow(table.Row{st, counts[st]})
		total += counts[st]
	}
	t.AppendFooter(table.Row{"total", total})
	t.SetColumnConfigs(numericColumns(2))
	fmt.Fprintln(w, t.Render())
}

func imagesCell(failed int) string {
	if failed == 0 {
		return "ok"
	}
	return fmt.Sprintf("%d failed", failed)
}

func numericColumns(numbers ...int) []table.ColumnConfig {
	out := make([]table.ColumnConfig, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	return out
}
