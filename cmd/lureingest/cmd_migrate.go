package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the work item and catalog tables",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	st, err := openStores(cmd.Context(), e)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	if err := st.migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", st.driver)
	return nil
}
