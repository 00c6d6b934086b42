package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rtledger/rtledger/internal/money"
)

func payoutCommands(app *rtledgerInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "sweep and commit partner payouts",
	}

	cmd.AddCommand(payoutSweepCommand(app))
	return cmd
}

// payoutSweepCommand lists the eligible partners and, with --commit, generates today's
// payouts for them.
func payoutSweepCommand(app *rtledgerInstance) *cobra.Command {
	var threshold, actor string
	var commit bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "list partners whose accrued commission reaches the payout threshold",
		Run: func(cmd *cobra.Command, args []string) {
			limit := decimal.Zero
			if threshold != "" {
				parsed, err := decimal.NewFromString(threshold)
				if err != nil {
					log.Fatalf("invalid threshold %q", threshold)
				}
				limit = parsed
			}

			ctx := context.Background()
			eligible, err := app.rt.SweepEligiblePayouts(ctx, limit)
			if err != nil {
				log.Fatal(err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACCRUED\tPAYOUT KEY")
			for _, p := range eligible {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, money.FormatCurrency(p.AccruedCommission), p.PayoutKey)
			}
			_ = w.Flush()

			if !commit || len(eligible) == 0 {
				return
			}

			ids := make([]string, 0, len(eligible))
			for _, p := range eligible {
				ids = append(ids, p.ID)
			}
			result, err := app.rt.CommitPayoutBatch(ctx, ids, actor)
			if err != nil {
				log.Fatal(err)
			}
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&threshold, "threshold", "", "minimum accrued commission to list, commits always use the configured threshold")
	cmd.Flags().BoolVar(&commit, "commit", false, "generate the payouts")
	cmd.Flags().StringVar(&actor, "actor", "cli", "operator recorded in the action log")
	return cmd
}
