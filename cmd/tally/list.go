package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/service"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Long: `List transactions, optionally filtered by account, batch, status, or
date range.

Examples:
  tally list --account BE68539007547034
  tally list --verification unverified --limit 20
  tally list --start 2025-03-01 --end 2025-03-31`,
		RunE: runList,
	}

	cmd.Flags().String("account", "", "Filter by account id")
	cmd.Flags().String("batch", "", "Filter by import batch id")
	cmd.Flags().String("verification", "", "Filter by verification status")
	cmd.Flags().String("acceptance", "", "Filter by acceptance status")
	cmd.Flags().String("start", "", "Earliest execution date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Latest execution date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 50, "Maximum rows shown")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	filter, err := listFilter(cmd)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	transactions, err := store.GetTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	if len(transactions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No transactions match"))
		return nil
	}

	header := fmt.Sprintf("%-12s %-10s %12s  %-24s %-12s %-10s",
		"REFERENCE", "DATE", "AMOUNT", "COUNTERPARTY", "VERIFIED", "ACCEPTED")
	fmt.Fprintln(cmd.OutOrStdout(), cli.TableHeaderStyle.Render(header))

	for _, txn := range transactions {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-10s %12s  %-24s %-12s %-10s\n",
			truncate(txn.SequenceRef, 12),
			txn.ExecutionDate.Format("2006-01-02"),
			cli.FormatAmount(txn.Amount.StringFixed(2)),
			truncate(txn.CounterpartyName, 24),
			txn.Verification,
			txn.Acceptance)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render(
		fmt.Sprintf("%d transactions", len(transactions))))
	return nil
}

func listFilter(cmd *cobra.Command) (service.TransactionFilter, error) {
	account, _ := cmd.Flags().GetString("account")
	batch, _ := cmd.Flags().GetString("batch")
	verification, _ := cmd.Flags().GetString("verification")
	acceptance, _ := cmd.Flags().GetString("acceptance")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := service.TransactionFilter{
		AccountID:    account,
		BatchID:      batch,
		Verification: model.VerificationStatus(verification),
		Acceptance:   model.AcceptanceStatus(acceptance),
		Limit:        limit,
	}

	if start != "" {
		startDate, err := time.Parse("2006-01-02", start)
		if err != nil {
			return filter, fmt.Errorf("bad --start date %q: %w", start, err)
		}
		filter.StartDate = &startDate
	}
	if end != "" {
		endDate, err := time.Parse("2006-01-02", end)
		if err != nil {
			return filter, fmt.Errorf("bad --end date %q: %w", end, err)
		}
		filter.EndDate = &endDate
	}

	return filter, nil
}

// truncate shortens s to max runes; byte slicing would cut accented
// counterparty names mid-rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
