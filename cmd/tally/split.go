package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/allocation"
	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/model"
)

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <transaction-id>",
		Short: "Split a transaction across budget lines",
		Long: `Split a transaction into an allocation set read from a JSON file.

The file holds an array of lines:

  [
    {"description": "catering", "amount": "100.00", "account_code": "6040"},
    {"description": "drinks", "amount": "20.00", "member_id": "m-42"}
  ]

Amounts are magnitudes; signs are normalized to the parent movement. The
line amounts must cover the parent amount exactly (tolerance 0.01).
Re-splitting replaces the previous allocation set wholesale.`,
		Args: cobra.ExactArgs(1),
		RunE: runSplit,
	}

	cmd.Flags().StringP("lines", "l", "", "JSON file with allocation lines (required)")
	cmd.Flags().Bool("validate-only", false, "Validate the set without committing")
	_ = cmd.MarkFlagRequired("lines")

	return cmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	linesFile, _ := cmd.Flags().GetString("lines")
	validateOnly, _ := cmd.Flags().GetBool("validate-only")
	ctx := cmd.Context()

	lines, err := readAllocationLines(linesFile)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	parent, err := store.GetTransactionByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	result := allocation.ValidateAllocationSet(parent.Amount, lines)
	if !result.Valid() {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatError("Allocation set is invalid:"))
		for _, v := range result.Violations {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", cli.ErrorIcon, v.Message)
		}
		return result.Err()
	}

	if validateOnly {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
			fmt.Sprintf("Allocation set is valid: %d lines cover %s", len(lines), parent.Amount.StringFixed(2))))
		return nil
	}

	children, err := allocation.CommitAllocationSet(ctx, store, *parent, lines)
	if err != nil {
		return fmt.Errorf("failed to commit allocation set: %w", err)
	}

	summary := ""
	for _, child := range children {
		summary += fmt.Sprintf("  %d. %s  %s\n",
			child.ChildIndex, cli.FormatAmount(child.Amount.StringFixed(2)), child.Communication)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(
		fmt.Sprintf("%s Split into %d lines", cli.SplitIcon, len(children)), summary))

	return nil
}

func readAllocationLines(path string) ([]model.AllocationLine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lines file: %w", err)
	}

	var lines []model.AllocationLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to parse lines file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("lines file %s holds no allocation lines", path)
	}
	return lines, nil
}
