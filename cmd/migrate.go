package cmd

import (
	"example.com/backstage/services/warehouse/internal/database"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, _, err := database.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer database.Close(db)

		log.Info().Msg("Running database migrations...")
		if err := database.Migrate(db); err != nil {
			return errors.Wrap(err, "failed to run database migrations")
		}

		log.Info().Msg("Database migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
