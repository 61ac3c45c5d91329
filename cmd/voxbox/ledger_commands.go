package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"voxbox/internal/ledger"
)

func newLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the processing ledger",
	}
	cmd.AddCommand(newLedgerListCommand(), newLedgerStatsCommand())
	return cmd
}

func openLedger() (*ledger.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Paths.LedgerPath)
}

func newLedgerListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processed jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ledger is empty")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Job", "Status", "Processed", "Output / Error"})
			for _, rec := range records {
				detail := rec.OutputPath
				if rec.Status == ledger.StatusError {
					detail = rec.ErrorMessage
				}
				t.AppendRow(table.Row{
					rec.JobID,
					rec.Status,
					rec.ProcessedAt.Format("2006-01-02 15:04"),
					detail,
				})
			}
			t.Render()
			return nil
		},
	}
}

func newLedgerStatsCommand() *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show processing counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.StatsFor(accountID)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendRows([]table.Row{
				{"Total", stats.Total},
				{"Succeeded", stats.Succeeded},
				{"Failed", stats.Failed},
			})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "limit to one Dropbox account id")
	return cmd
}
