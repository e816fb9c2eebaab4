package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"listing-chat/config"
	"listing-chat/models"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the listings, conversations and messages tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := config.InitDB(cfg.Database)
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return errors.Wrap(err, "migrate")
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("schema migrated")
			return nil
		},
	}
}
