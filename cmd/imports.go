package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtledger/rtledger"
)

func importCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "import sales into the ledger",
	}

	cmd.AddCommand(importSheetCommand(app))
	cmd.AddCommand(importSalesAPICommand(app))
	cmd.AddCommand(importPartnersCommand(app))

	return cmd
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Fatalf("Error printing result: %v\n", err)
	}
	fmt.Println(string(data))
}

func readMapping(raw string) (rtledger.ColumnMapping, error) {
	if raw == "" {
		return nil, nil
	}
	var mapping rtledger.ColumnMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("mapping must be a JSON object of field to column: %w", err)
	}
	return mapping, nil
}

func importSheetCommand(app *rtledgerInstance) *cobra.Command {
	var mappingJSON, actor string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sheet <file>",
		Short: "import a CSV or JSON sales sheet",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			content, err := os.ReadFile(args[0])
			if err != nil {
				log.Fatalf("Error reading %s: %v\n", args[0], err)
			}
			mapping, err := readMapping(mappingJSON)
			if err != nil {
				log.Fatal(err)
			}

			ctx := context.Background()
			name := filepath.Base(args[0])
			if dryRun {
				preview, used, err := app.rt.PreviewSpreadsheet(ctx, name, content, mapping)
				if err != nil {
					log.Fatal(err)
				}
				printJSON(map[string]interface{}{"preview": preview, "mapping": used})
				return
			}

			result, err := app.rt.ImportSpreadsheet(ctx, name, content, mapping, actor)
			if err != nil {
				log.Fatal(err)
			}
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&mappingJSON, "mapping", "", "column mapping as JSON, e.g. {\"partner_id\":\"ID Parceiro\",\"amount\":\"Valor\"}")
	cmd.Flags().StringVar(&actor, "actor", "cli", "operator recorded in the action log")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only preview the import")
	return cmd
}

func importSalesAPICommand(app *rtledgerInstance) *cobra.Command {
	var from, to, partnerID, actor string
	var exclude []string
	var paidOnly, refresh, dryRun bool

	cmd := &cobra.Command{
		Use:   "sales-api",
		Short: "import new sales from the sales API",
		Run: func(cmd *cobra.Command, args []string) {
			filter := rtledger.SalesFeedFilter{
				PartnerID:       partnerID,
				ExcludePartners: exclude,
				PaidOnly:        paidOnly,
				Refresh:         refresh,
			}
			var err error
			if filter.From, err = parseFlagDate(from); err != nil {
				log.Fatal(err)
			}
			if filter.To, err = parseFlagDate(to); err != nil {
				log.Fatal(err)
			}

			ctx := context.Background()
			if dryRun {
				preview, err := app.rt.PreviewSalesAPIImport(ctx, filter)
				if err != nil {
					log.Fatal(err)
				}
				printJSON(preview)
				return
			}

			result, err := app.rt.ImportFromSalesAPI(ctx, filter, actor)
			if err != nil {
				log.Fatal(err)
			}
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first completion date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last completion date, YYYY-MM-DD")
	cmd.Flags().StringVar(&partnerID, "partner", "", "only this partner id")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "partner ids to leave out")
	cmd.Flags().BoolVar(&paidOnly, "paid-only", false, "only sales with the paid status")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the sales feed cache")
	cmd.Flags().StringVar(&actor, "actor", "cli", "operator recorded in the action log")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only preview the import")
	return cmd
}

func importPartnersCommand(app *rtledgerInstance) *cobra.Command {
	var mappingJSON, actor string

	cmd := &cobra.Command{
		Use:   "partners <file>",
		Short: "register the partners of a CSV or JSON sheet",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			content, err := os.ReadFile(args[0])
			if err != nil {
				log.Fatalf("Error reading %s: %v\n", args[0], err)
			}
			mapping, err := readMapping(mappingJSON)
			if err != nil {
				log.Fatal(err)
			}

			result, err := app.rt.ImportPartnersFile(context.Background(), filepath.Base(args[0]), content, mapping, actor)
			if err != nil {
				log.Fatal(err)
			}
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&mappingJSON, "mapping", "", "column mapping as JSON")
	cmd.Flags().StringVar(&actor, "actor", "cli", "operator recorded in the action log")
	return cmd
}

func parseFlagDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", value)
	}
	return t, nil
}
