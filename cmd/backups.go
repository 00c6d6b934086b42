package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	backups "github.com/rtledger/rtledger/internal/pg-backups"
)

func backupCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "dump the rtledger schema with pg_dump",
	}

	cmd.AddCommand(backupToDriveCommands(app))
	cmd.AddCommand(backupToS3Commands(app))

	return cmd
}

func backupToDriveCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "write the dump under backup.dir",
		Run: func(cmd *cobra.Command, args []string) {
			bm, err := backups.NewBackupManager(app.cnf)
			if err != nil {
				logrus.Error(err)
				return
			}
			if _, err := bm.BackupToDisk(context.Background()); err != nil {
				logrus.Error(err)
			}
		},
	}

	return cmd
}

func backupToS3Commands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3",
		Short: "dump, zip and upload to the configured bucket",
		Run: func(cmd *cobra.Command, args []string) {
			bm, err := backups.NewBackupManager(app.cnf)
			if err != nil {
				logrus.Error(err)
				return
			}
			if _, err := bm.BackupToS3(context.Background()); err != nil {
				logrus.Error(err)
			}
		},
	}

	return cmd
}
