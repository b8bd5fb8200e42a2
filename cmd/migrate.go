package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"messenger-api/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the MySQL schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver != "mysql" {
			return errors.Errorf("migrate needs STORE_DRIVER=mysql, got %q", cfg.StoreDriver)
		}

		db, err := database.Initialize(cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return errors.Wrap(err, "access connection pool")
		}
		defer sqlDB.Close()

		if err := database.Migrate(db, log); err != nil {
			return err
		}
		log.Info("database migrated")
		return nil
	},
}
