package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lureingest/internal/adapter/memstore"
)

var runFlags struct {
	max    int
	dryRun bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of pending work items and exit",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.max, "max", 0, "Maximum items to take (default MAX_ITEMS_PER_RUN, 0 = all)")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Extract and expand without writing statuses, rows or images")
}

func runRun(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	st, err := openStores(ctx, e)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	queue, catalog := st.queue, st.catalog
	objects, _, err := openObjects(e.cfg)
	if err != nil {
		return err
	}
	if runFlags.dryRun {
		queue = readOnlyQueue{TaskQueue: st.queue}
		catalog = memstore.NewCatalog()
		objects = memstore.NewObjects(e.cfg.StorageBaseURL)
	}

	parts, err := buildPipelineParts(e, objects)
	if err != nil {
		return err
	}
	defer parts.close()
	if runFlags.dryRun {
		parts.signal = nil
	}

	orch := newOrchestrator(e, queue, catalog, parts, runFlags.max)
	sum, runErr := orch.Run(ctx)
	renderSummary(cmd.OutOrStdout(), sum)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
