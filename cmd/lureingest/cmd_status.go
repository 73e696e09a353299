package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many work items are in each state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	st, err := openStores(cmd.Context(), e)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	counts, err := st.admin.CountByStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("count work items: %w", err)
	}
	renderCounts(cmd.OutOrStdout(), counts)
	return nil
}
