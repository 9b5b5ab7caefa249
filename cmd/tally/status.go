package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/model"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <transaction-id>",
		Short: "Show or change a transaction's reconciliation status",
		Long: `Show a transaction's verification and acceptance status, or move it
through the state machines.

Verification: unverified -> reconciled (terminal) or not_found (re-enterable).
Acceptance:   pending -> accepted or refused (both terminal).

Examples:
  tally status 0b2f…            # show
  tally status 0b2f… --verify reconciled
  tally status 0b2f… --accept accepted`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}

	cmd.Flags().String("verify", "", "Set verification status (unverified, not_found, reconciled)")
	cmd.Flags().String("accept", "", "Set acceptance status (accepted, refused)")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	verify, _ := cmd.Flags().GetString("verify")
	accept, _ := cmd.Flags().GetString("accept")
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	txn, err := store.GetTransactionByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	if verify != "" {
		if err := store.UpdateVerificationStatus(ctx, txn.ID, model.VerificationStatus(verify)); err != nil {
			return fmt.Errorf("failed to update verification status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
			fmt.Sprintf("Verification of %s is now %s", txn.ID, verify)))
	}

	if accept != "" {
		if err := store.UpdateAcceptanceStatus(ctx, txn.ID, model.AcceptanceStatus(accept)); err != nil {
			return fmt.Errorf("failed to update acceptance status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
			fmt.Sprintf("Acceptance of %s is now %s", txn.ID, accept)))
	}

	if verify != "" || accept != "" {
		return nil
	}

	body := fmt.Sprintf("  Reference:    %s\n  Date:         %s\n  Amount:       %s %s\n  Counterparty: %s\n  Verification: %s\n  Acceptance:   %s",
		txn.SequenceRef,
		txn.ExecutionDate.Format("2006-01-02"),
		cli.FormatAmount(txn.Amount.StringFixed(2)), txn.Currency,
		txn.CounterpartyName,
		txn.Verification,
		txn.Acceptance)
	if txn.AccountCode != "" {
		body += fmt.Sprintf("\n  Account code: %s", txn.AccountCode)
	}
	if txn.IsParent {
		body += fmt.Sprintf("\n  Split into:   %d lines", txn.ChildCount)
	}
	for _, link := range txn.MatchedEntities {
		body += fmt.Sprintf("\n  %s %s/%s %s (%d)", cli.LinkIcon, link.EntityType, link.EntityID, link.Name, link.Confidence)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Transaction "+txn.ID, body))
	return nil
}
