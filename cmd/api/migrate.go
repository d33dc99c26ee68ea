package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadApp()
		if err != nil {
			return err
		}
		defer rt.close()

		database, err := rt.openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		return database.AutoMigrate()
	},
}
