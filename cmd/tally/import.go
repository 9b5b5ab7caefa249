package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/bankcsv"
	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/reconcile"
	"github.com/clubledger/tally/internal/service"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <account-id> [files...]",
		Short: "Import transactions from bank CSV exports",
		Long: `Import bank statement rows from semicolon-delimited CSV exports.

Re-importing an overlapping export is safe: rows already in the ledger are
skipped, and completed sequence references upgrade their provisional twins
in place.

Examples:
  # Import one export
  tally import BE68539007547034 ~/Downloads/export_march.csv

  # Import several months at once
  tally import BE68539007547034 ~/Downloads/export_*.csv`,
		Args: cobra.MinimumNArgs(2),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Parse and report without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	accountID := args[0]

	files, err := expandFileArgs(args[1:])
	if err != nil {
		return err
	}

	parser := bankcsv.NewParser()
	ctx := cmd.Context()

	var rows []model.Transaction
	for _, filePath := range files {
		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", filePath, err)
		}

		parsed, err := parser.ParseFile(ctx, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", filePath, err)
		}

		slog.Info("Parsed CSV export",
			"file", filepath.Base(filePath),
			"rows", len(parsed))
		rows = append(rows, parsed...)
	}

	if len(rows) == 0 {
		fmt.Println(cli.FormatWarning("No rows found in any file"))
		return nil
	}

	if dryRun {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d rows parsed, nothing saved", len(rows))))
		return nil
	}

	return ingestRows(cmd, accountID, rows)
}

// ingestRows runs one import batch and prints the styled summary. Shared by
// the CSV and OFX import commands.
func ingestRows(cmd *cobra.Command, accountID string, rows []model.Transaction) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	handler := cli.NewInterruptHandler(cmd.OutOrStdout())
	ctx = handler.HandleInterrupts(ctx, true)

	bar := cli.NewImportBar(len(rows), cmd.OutOrStdout())

	importer := reconcile.NewImporter(store)
	importer.SetProgressFunc(func() { _ = bar.Add(1) })

	// A retried batch is harmless: rows committed on an earlier attempt are
	// skipped as duplicates by their fingerprints.
	var result *reconcile.ImportResult
	err = common.WithRetry(ctx, func() error {
		_ = bar.Set(0)
		batch, err := importer.ImportBatch(ctx, accountID, rows)
		if err != nil {
			return err
		}
		result = batch
		return nil
	}, service.RetryOptions{MaxAttempts: 3})
	_ = bar.Finish()
	if err != nil {
		common.LogError(err, "Import failed", common.Fields{"account_id": accountID})
		return fmt.Errorf("import failed: %w", err)
	}

	common.LogInfo("Import batch committed", common.Fields{
		"account_id":         accountID,
		"batch_id":           result.BatchID,
		"imported":           result.Imported,
		"duplicates_skipped": result.DuplicatesSkipped,
		"upgraded":           result.Upgraded,
	})

	summary := fmt.Sprintf("  %s Imported: %d\n  %s Duplicates skipped: %d\n  %s References upgraded: %d\n  Batch: %s",
		cli.SuccessIcon, result.Imported,
		cli.InfoIcon, result.DuplicatesSkipped,
		cli.LinkIcon, result.Upgraded,
		result.BatchID)
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Import complete", summary))

	return nil
}

// expandFileArgs resolves glob patterns and verifies plain paths exist.
func expandFileArgs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			files = append(files, matches...)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}
