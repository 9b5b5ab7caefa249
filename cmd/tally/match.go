package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/match"
	"github.com/clubledger/tally/internal/model"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <transaction-id>",
		Short: "Link a transaction to members, events, and expense claims",
		Long: `Score a pool of candidate entities against a transaction and record the
links that clear the confidence floor.

Candidates are read from a JSON file:

  [
    {"entity_type": "member", "entity_id": "m-42", "name": "Dupont Marie",
     "amount": "250.00", "keywords": ["cotisation"]},
    {"entity_type": "event", "entity_id": "e-7", "name": "Soirée annuelle",
     "date": "2025-03-20"}
  ]

Manual links already on the transaction are never downgraded.`,
		Args: cobra.ExactArgs(1),
		RunE: runMatch,
	}

	cmd.Flags().StringP("candidates", "c", "", "JSON file with candidate entities (required)")
	cmd.Flags().Int("min-confidence", 0, "Confidence floor (default 30)")
	cmd.Flags().Bool("dry-run", false, "Score and print without saving")
	_ = cmd.MarkFlagRequired("candidates")

	return cmd
}

// candidateRecord is the JSON shape of one pool entry.
type candidateRecord struct {
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	Name       string   `json:"name"`
	Date       string   `json:"date,omitempty"`
	Amount     string   `json:"amount,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	// Free-form entity fields (member number, registration answers); values
	// quoted in the communication strengthen the match.
	Fields map[string]string `json:"fields,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	candidatesFile, _ := cmd.Flags().GetString("candidates")
	minConfidence, _ := cmd.Flags().GetInt("min-confidence")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	pool, err := readCandidates(candidatesFile)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	txn, err := store.GetTransactionByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	matches := match.MatchEntities(*txn, pool, match.Options{MinConfidence: minConfidence})
	if len(matches) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No candidate cleared the confidence floor"))
		return nil
	}

	for _, m := range matches {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s/%s %s (confidence %d)\n",
			cli.LinkIcon, m.EntityType, m.EntityID, m.Name, m.Confidence)
	}

	if dryRun {
		return nil
	}

	merged := match.MergeMatches(txn.MatchedEntities, matches)
	if err := store.SaveMatchedEntities(ctx, txn.ID, merged); err != nil {
		return fmt.Errorf("failed to save matches: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
		fmt.Sprintf("Recorded %d links on %s", len(merged), txn.ID)))
	return nil
}

func readCandidates(path string) ([]match.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}

	var records []candidateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse candidates file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("candidates file %s holds no entries", path)
	}

	pool := make([]match.Candidate, 0, len(records))
	for i, rec := range records {
		if rec.EntityType == "" || rec.EntityID == "" {
			return nil, fmt.Errorf("candidate %d: entity_type and entity_id are required", i+1)
		}

		cand := match.Candidate{
			EntityType: model.EntityType(rec.EntityType),
			EntityID:   rec.EntityID,
			Name:       rec.Name,
			Keywords:   rec.Keywords,
		}
		if len(rec.Fields) > 0 {
			cand.Fields = model.CustomFields{Extensions: rec.Fields}
		}

		if rec.Date != "" {
			date, err := time.Parse("2006-01-02", rec.Date)
			if err != nil {
				return nil, fmt.Errorf("candidate %d: bad date %q: %w", i+1, rec.Date, err)
			}
			cand.Date = &date
		}
		if rec.Amount != "" {
			amount, err := decimal.NewFromString(rec.Amount)
			if err != nil {
				return nil, fmt.Errorf("candidate %d: bad amount %q: %w", i+1, rec.Amount, err)
			}
			cand.Amount = &amount
		}

		pool = append(pool, cand)
	}
	return pool, nil
}
