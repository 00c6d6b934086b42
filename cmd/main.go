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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtledger/rtledger"
	"github.com/rtledger/rtledger/config"
	"github.com/rtledger/rtledger/database"
	"github.com/rtledger/rtledger/internal/notification"
)

// RTLedgerCLI is the command-line application, wrapping the root Cobra command.
type RTLedgerCLI struct {
	cmd *cobra.Command
}

// rtledgerInstance holds the service and its configuration once preRun has loaded them.
type rtledgerInstance struct {
	rt  *rtledger.RTLedger
	cnf *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the service before any command runs.
func preRun(app *rtledgerInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		// migrations run before the schema exists, so they only need the config
		if cmd.Name() == "config" || (cmd.Parent() != nil && (cmd.Parent().Name() == "migrate" || cmd.Parent().Name() == "backup")) {
			app.cnf = cnf
			return nil
		}

		rt, err := setupRTLedger(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.rt = rt
		app.cnf = cnf
		return nil
	}
}

func setupRTLedger(cfg *config.Configuration) (*rtledger.RTLedger, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	rt, err := rtledger.NewRTLedger(db)
	if err != nil {
		return nil, fmt.Errorf("error creating rtledger: %v", err)
	}
	return rt, nil
}

func postRun(app *rtledgerInstance) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if app.rt == nil {
			return
		}
		if err := app.rt.Close(); err != nil {
			logrus.WithError(err).Warn("error closing rtledger")
		}
	}
}

// NewCLI builds the root command and its subcommands.
func NewCLI() *RTLedgerCLI {
	var configFile string
	app := &rtledgerInstance{}

	var rootCmd = &cobra.Command{
		Use:   "rtledger",
		Short: "Partner commission back office",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./rtledger.json", "Configuration file for rtledger")

	rootCmd.PersistentPreRunE = preRun(app, &configFile)
	rootCmd.PersistentPostRun = postRun(app)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(importCommands(app))
	rootCmd.AddCommand(payoutCommands(app))
	rootCmd.AddCommand(backupCommands(app))
	rootCmd.AddCommand(configCommands())

	return &RTLedgerCLI{cmd: rootCmd}
}

func (c RTLedgerCLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
