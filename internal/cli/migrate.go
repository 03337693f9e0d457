package cli

import (
	"github.com/spf13/cobra"

	"chatroom-service/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Connect(cmd.Context(), cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			return err
		}
		return database.Close()
	},
}
