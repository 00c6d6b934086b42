/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/rtledger/rtledger"
	"github.com/rtledger/rtledger/database"
)

func migrateCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run rtledger schema migrations",
	}

	cmd.AddCommand(migrateUpCommands(app))
	cmd.AddCommand(migrateDownCommands(app))

	return cmd
}

func runMigrations(app *rtledgerInstance, direction migrate.MigrationDirection) (int, error) {
	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: rtledger.SQLFiles,
		Root:       "sql",
	}

	db, err := database.ConnectDB(app.cnf.DataSource.Dns)
	if err != nil {
		return 0, fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	migrate.SetSchema("rtledger")
	return migrate.Exec(db, "postgres", migrations, direction)
}

func migrateUpCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "apply pending migrations",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(app, migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
				return
			}
			fmt.Printf("Applied %d migrations!\n", n)
		},
	}

	return cmd
}

func migrateDownCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "roll back applied migrations",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(app, migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
				return
			}
			fmt.Printf("Rolled back %d migrations!\n", n)
		},
	}

	return cmd
}
