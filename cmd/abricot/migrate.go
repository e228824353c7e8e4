package main

import (
	"github.com/abricot-app/abricot/db"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := bootstrap()
			if err != nil {
				return err
			}

			if err := db.MigrateDatabase(conn); err != nil {
				return err
			}

			logger.GetLogger().Info("Migrations applied", "models", len(db.Models()))
			return nil
		},
	}
}
