package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/suggest"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Suggest accounting codes for a transaction",
		Long: `Rank accounting-code candidates for a transaction from its linked
entities, the account's coding history, and an optional rules file.

The rules file is JSON:

  {
    "keywords": [{"keyword": "cotisation", "code": "7010", "label": "Membership fees"}],
    "recurring_amounts": [{"amount": "250.00", "code": "7010", "label": "Membership fees"}],
    "entity_codes": [{"entity_type": "event", "entity_id": "e-7",
                      "account_code": "7050", "label": "Event revenue"}]
  }

Nothing is written unless --apply names a code.`,
		Args: cobra.ExactArgs(1),
		RunE: runSuggest,
	}

	cmd.Flags().StringP("rules", "r", "", "JSON file with keyword and amount rules")
	cmd.Flags().Int("history-limit", 0, "Cap on historical transactions consulted (default 200)")
	cmd.Flags().String("apply", "", "Write this code onto the transaction")

	return cmd
}

// suggestionRules is the JSON shape of the rules file.
type suggestionRules struct {
	Keywords []struct {
		Keyword string `json:"keyword"`
		Code    string `json:"code"`
		Label   string `json:"label"`
	} `json:"keywords"`
	RecurringAmounts []struct {
		Amount string `json:"amount"`
		Code   string `json:"code"`
		Label  string `json:"label"`
	} `json:"recurring_amounts"`
	EntityCodes []struct {
		EntityType  string `json:"entity_type"`
		EntityID    string `json:"entity_id"`
		AccountCode string `json:"account_code"`
		Label       string `json:"label"`
	} `json:"entity_codes"`
}

func runSuggest(cmd *cobra.Command, args []string) error {
	rulesFile, _ := cmd.Flags().GetString("rules")
	historyLimit, _ := cmd.Flags().GetInt("history-limit")
	applyCode, _ := cmd.Flags().GetString("apply")
	ctx := cmd.Context()

	var rules suggestionRules
	if rulesFile != "" {
		data, err := os.ReadFile(rulesFile)
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}
		if err := json.Unmarshal(data, &rules); err != nil {
			return fmt.Errorf("failed to parse rules file: %w", err)
		}
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

	if applyCode != "" {
		if err := store.AssignAccountCode(ctx, txn.ID, applyCode); err != nil {
			return fmt.Errorf("failed to assign account code: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
			fmt.Sprintf("Assigned code %s to %s", applyCode, txn.ID)))
		return nil
	}

	history, err := store.GetHistorySample(ctx, txn.AccountID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load coding history: %w", err)
	}

	sctx := buildSuggestionContext(*txn, history, rules)
	suggestions := suggest.SuggestAccountCodes(sctx)
	if len(suggestions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No evidence supports any code"))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.StyleTitle("Suggested codes"))
	for i, s := range suggestions {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s %s (%s, confidence %d)\n",
			i+1, cli.BoldStyle.Render(s.Code), s.Label, s.Source, s.Confidence)
		for _, reason := range s.Reasons {
			fmt.Fprintf(cmd.OutOrStdout(), "     %s\n", cli.SubtleStyle.Render(reason))
		}
	}

	return nil
}

// buildSuggestionContext assembles the evidence the engine consults:
// stored history, the caller's rules, and a linked entity that carries a
// canonical code.
func buildSuggestionContext(txn model.Transaction, history []model.Transaction, rules suggestionRules) suggest.Context {
	sctx := suggest.Context{
		Counterparty:  txn.CounterpartyName,
		Communication: txn.Communication,
		Amount:        txn.Amount,
	}

	for _, h := range history {
		sctx.History = append(sctx.History, suggest.CodedTransaction{
			Counterparty: h.CounterpartyName,
			AccountCode:  h.AccountCode,
			Label:        h.Category,
			Amount:       h.Amount,
		})
	}

	for _, k := range rules.Keywords {
		sctx.Keywords = append(sctx.Keywords, suggest.KeywordRule{
			Keyword: k.Keyword,
			Code:    k.Code,
			Label:   k.Label,
		})
	}

	for _, r := range rules.RecurringAmounts {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			continue
		}
		sctx.RecurringAmounts = append(sctx.RecurringAmounts, suggest.AmountRule{
			Code:   r.Code,
			Label:  r.Label,
			Amount: amount,
		})
	}

	// Highest-confidence link with a known canonical code wins. Links are
	// already confidence-descending.
	for _, link := range txn.MatchedEntities {
		for _, ec := range rules.EntityCodes {
			if strings.EqualFold(ec.EntityType, string(link.EntityType)) && ec.EntityID == link.EntityID {
				sctx.Linked = &suggest.LinkedEntity{
					Type:        link.EntityType,
					Name:        link.Name,
					AccountCode: ec.AccountCode,
					Label:       ec.Label,
				}
				break
			}
		}
		if sctx.Linked != nil {
			break
		}
	}

	return sctx
}
