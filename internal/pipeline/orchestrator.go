// Package pipeline drives batch runs: it pulls pending work items, sends each
// through extraction, image relocation, expansion and the catalog writer, and
// decides whether the item ends done or error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lureingest/internal/domain"
	"lureingest/internal/extract"
	"lureingest/internal/imaging"
	"lureingest/internal/ingest"
	"lureingest/internal/normalize"
	"lureingest/internal/rebuild"
	"lureingest/internal/status"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// AdapterResolver finds the adapter for a source id.
type AdapterResolver interface {
	Lookup(source string) (extract.Adapter, error)
}

// Relocator copies a remote image into the object store.
type Relocator interface {
	Relocate(ctx context.Context, source, remoteURL, key string) (string, error)
}

// RowWriter persists canonical rows that are not already in the catalog.
type RowWriter interface {
	Write(ctx context.Context, rows []domain.CanonicalRow) (ingest.Counts, error)
}

// Signaler notifies the downstream site build.
type Signaler interface {
	Fire(ctx context.Context, ev rebuild.Event) error
}

// Deps are the collaborators of an Orchestrator. Signal may be nil.
type Deps struct {
	Queue    domain.TaskQueue
	Adapters AdapterResolver
	Images   Relocator
	Writer   RowWriter
	Signal   Signaler
	Logger   zerolog.Logger
}

// Options tune a run.
type Options struct {
	// MaxItems caps the pending items taken per run; 0 means no cap.
	MaxItems int
	// ItemDelay is the pause between the end of one item and the start of
	// the next item of the same source.
	ItemDelay time.Duration
	// SourceParallelism > 1 processes up to that many sources concurrently,
	// each source still strictly sequential.
	SourceParallelism int
	NoteLimit         int
}

type Orchestrator struct {
	deps Deps
	opts Options
	now  func() time.Time

	running sync.Mutex
	mu      sync.Mutex
	last    *Summary
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	}
	if opts.SourceParallelism < 1 {
		opts.SourceParallelism = 1
	}
	return &Orchestrator{deps: deps, opts: opts, now: time.Now}
}

// LastSummary returns the summary of the most recent finished run.
func (o *Orchestrator) LastSummary() (Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Summary{}, false
	}
	return *o.last, true
}

// Run processes one batch of pending items. A failure to list pending items
// aborts the run; any other failure is confined to its item. A cancelled ctx
// stops the run between items and returns the partial summary with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	return o.RunWithID(ctx, uuid.NewString())
}

// RunWithID is Run with a caller-chosen run id.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string) (Summary, error) {
	if !o.running.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer o.running.Unlock()

	start := o.now()
	sum := Summary{RunID: runID, StartedAt: start}
	logger := o.deps.Logger.With().Str("run_id", sum.RunID).Logger()

	items, err := o.deps.Queue.ListPending(ctx, o.opts.MaxItems)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline: list pending failed")
		return sum, fmt.Errorf("list pending: %w", err)
	}
	logger.Info().Int("items", len(items)).Msg("pipeline: run started")

	machine := status.NewMachine(o.deps.Queue, o.opts.NoteLimit)
	outcomes := make([]*ItemOutcome, len(items))

	runErr := o.runLanes(ctx, items, func(ctx context.Context, idx int) {
		out := o.processItem(ctx, logger, machine, items[idx])
		outcomes[idx] = &out
	})

	for _, out := range outcomes {
		if out != nil {
			sum.add(*out)
		}
	}

	if sum.Succeeded > 0 && o.deps.Signal != nil && ctx.Err() == nil {
		ev := rebuild.Event{RunID: sum.RunID, RowsInserted: sum.RowsInserted, Items: sum.Succeeded}
		if err := o.deps.Signal.Fire(ctx, ev); err != nil {
			logger.Warn().Err(err).Msg("pipeline: rebuild signal failed")
		} else {
			sum.Signalled = true
		}
	}

	sum.Elapsed = o.now().Sub(start)
	logger.Info().
		Int("processed", sum.Processed).
		Int("succeeded", sum.Succeeded).
		Int("errored", sum.Errored).
		Int("rows_inserted", sum.RowsInserted).
		Int("colors", sum.ColorsProcessed).
		Dur("elapsed", sum.Elapsed).
		Msg("pipeline: run finished")

	o.mu.Lock()
	last := sum
	o.last = &last
	o.mu.Unlock()
	return sum, runErr
}

// runLanes calls process for every item index. Items of one source always run
// in queue order on a single lane; with parallelism 1 there is one lane for
// all items.
func (o *Orchestrator) runLanes(ctx context.Context, items []domain.WorkItem, process func(context.Context, int)) error {
	if o.opts.SourceParallelism <= 1 {
		all := make([]int, len(items))
		for i := range items {
			all[i] = i
		}
		return o.lane(ctx, all, process)
	}

	var order []string
	lanes := map[string][]int{}
	for i, it := range items {
		if _, ok := lanes[it.Source]; !ok {
			order = append(order, it.Source)
		}
		lanes[it.Source] = append(lanes[it.Source], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.SourceParallelism)
	for _, src := range order {
		idxs := lanes[src]
		g.Go(func() error {
			return o.lane(gctx, idxs, process)
		})
	}
	return g.Wait()
}

// lane processes idxs in order and waits ItemDelay after each item before
// starting the next one.
func (o *Orchestrator) lane(ctx context.Context, idxs []int, process func(context.Context, int)) error {
	for i, idx := range idxs {
		if i > 0 {
			if err := pause(ctx, o.opts.ItemDelay); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		process(ctx, idx)
	}
	return nil
}

// pause sleeps for d or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) processItem(ctx context.Context, runLogger zerolog.Logger, machine *status.Machine, item domain.WorkItem) ItemOutcome {
	started := o.now()
	logger := runLogger.With().Str("item_id", item.ID).Str("source", item.Source).Str("url", item.URL).Logger()
	out := ItemOutcome{ItemID: item.ID, Source: item.Source, URL: item.URL}

	finish := func() ItemOutcome {
		out.Elapsed = o.now().Sub(started)
		return out
	}
	fail := func(cause error) ItemOutcome {
		out.Status = domain.WorkStatusError
		out.Err = cause
		out.Note = status.Truncate(cause.Error(), o.noteLimit())
		if err := machine.Fail(ctx, item, cause); err != nil {
			logger.Error().Err(err).Msg("pipeline: mark error failed")
		}
		logger.Warn().Err(cause).Msg("pipeline: item failed")
		return finish()
	}

	if err := machine.Begin(ctx, item); err != nil {
		logger.Error().Err(err).Msg("pipeline: mark in_progress failed")
		out.Status = domain.WorkStatusError
		out.Err = err
		out.Note = status.Truncate(err.Error(), o.noteLimit())
		return finish()
	}

	adapter, err := o.deps.Adapters.Lookup(item.Source)
	if err != nil {
		return fail(err)
	}
	res, err := adapter.Extract(ctx, item.URL)
	if err == nil {
		err = res.Validate()
	}
	if err != nil {
		return fail(&domain.AdapterError{Source: item.Source, URL: item.URL, Err: err})
	}
	res.Source = item.Source

	colors := normalize.Colors(res)
	images, failed := o.relocateImages(ctx, logger, res, colors)
	out.Colors = len(colors)
	out.Weights = max(len(normalize.Weights(res)), 1)
	out.ImagesFailed = failed

	rows := normalize.Expand(res, images)
	counts, err := o.deps.Writer.Write(ctx, rows)
	out.Rows = counts
	if err != nil {
		return fail(err)
	}
	if counts.AllFailed() {
		return fail(fmt.Errorf("all %d rows failed to insert", counts.Failed))
	}

	note := status.DoneNote(out.Colors, out.Weights, counts.Inserted, counts.Skipped, counts.Failed)
	if err := machine.Complete(ctx, item, note); err != nil {
		return fail(fmt.Errorf("mark done: %w", err))
	}
	out.Status = domain.WorkStatusDone
	out.Note = note
	logger.Info().
		Int("colors", out.Colors).
		Int("inserted", counts.Inserted).
		Int("skipped", counts.Skipped).
		Int("failed", counts.Failed).
		Msg("pipeline: item done")
	return finish()
}

// relocateImages copies the main image and every color image. Each distinct
// remote URL is relocated once; a failure leaves that slot empty so the row
// falls back to the main image.
func (o *Orchestrator) relocateImages(ctx context.Context, logger zerolog.Logger, res domain.ExtractionResult, colors []domain.ColorVariant) (normalize.Resolved, int) {
	done := map[string]string{}
	failed := 0
	relocate := func(remote, index string) string {
		if remote == "" {
			return ""
		}
		if u, ok := done[remote]; ok {
			return u
		}
		key := imaging.KeyFor(res.Source, res.Slug, index)
		u, err := o.deps.Images.Relocate(ctx, res.Source, remote, key)
		if err != nil {
			failed++
			logger.Warn().Err(err).Str("image", remote).Msg("pipeline: image relocation failed")
			u = ""
		}
		done[remote] = u
		return u
	}

	resolved := normalize.Resolved{Colors: make([]string, len(colors))}
	resolved.Main = relocate(res.MainImage, "main")
	for i, c := range colors {
		resolved.Colors[i] = relocate(c.ImageURL, strconv.Itoa(i))
	}
	return resolved, failed
}

func (o *Orchestrator) noteLimit() int {
	if o.opts.NoteLimit > 0 {
		return o.opts.NoteLimit
	}
	return status.DefaultNoteLimit
}
