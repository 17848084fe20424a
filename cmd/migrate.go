package main

import (
	"fmt"

	"github.com/spf13/cobra"

	db "stationmeteo-server/internal/db"
	"stationmeteo-server/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			n, err := migrate.Run(cmd.Context(), conn, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) to %s\n", n, cfg.Path)
			return nil
		},
	}
}
