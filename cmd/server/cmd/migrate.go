package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"salesmanager/internal/infrastructure/migration"
	"salesmanager/migrations"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить миграции PostgreSQL",
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.DB.DatabaseURI == "" {
			return errors.New("DATABASE_URI is not set")
		}
		m := migration.NewMigration(migrations.FS, cfg.DB.DatabaseURI, migration.DefaultEngine, log)
		if migrateDown {
			return m.Down()
		}
		return m.Up()
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "откатить все миграции")
}
