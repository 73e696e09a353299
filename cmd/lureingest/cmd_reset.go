package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lureingest/internal/domain"
)

var resetFlags struct {
	errors bool
	stale  time.Duration
	source string
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move errored or stuck work items back to pending",
	Long: "reset re-queues items. --errors picks items that ended in error;\n" +
		"--stale picks in_progress items untouched for at least the given duration,\n" +
		"which is how items left behind by a crashed run are recovered.",
	RunE: runReset,
}

func init() {
	f := resetCmd.Flags()
	f.BoolVar(&resetFlags.errors, "errors", false, "Reset items in the error state")
	f.DurationVar(&resetFlags.stale, "stale", 0, "Reset in_progress items not updated for this long (e.g. 2h)")
	f.StringVar(&resetFlags.source, "source", "", "Only reset items of this source")
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetFlags.errors && resetFlags.stale <= 0 {
		return errors.New("reset: pass --errors and/or --stale")
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	st, err := openStores(cmd.Context(), e)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	n, err := st.admin.Reset(cmd.Context(), domain.ResetFilter{
		Errors:     resetFlags.errors,
		StaleAfter: resetFlags.stale,
		Source:     resetFlags.source,
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %d item(s) to pending\n", n)
	return nil
}
