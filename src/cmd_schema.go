package main

import (
	"herd/src/db"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the posts index or table if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		store, err := db.Open(cmd.Context(), cfg.Store, log)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.Store.Driver).Msg("Schema ready")
		return nil
	},
}
