package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/toolcrib/internal/container"
	"github.com/garyjia/toolcrib/pkg/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bundle, err := container.ProvideDatabase(ctx, &a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			defer bundle.DB.Close()

			applied, err := database.NewMigrator(bundle.DB, a.logger).Applied(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%d migrations applied)\n", last(applied), len(applied))
			return nil
		},
	}
}

func last(versions []int) int {
	if len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1]
}
