package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clubledger/tally/internal/cli"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import bank statement rows from OFX or QFX files exported from your bank.

The account id is taken from the file itself. Re-importing an overlapping
export is safe: rows already in the ledger are skipped.

Examples:
  # Import single file
  tally import-ofx ~/Downloads/march_2025.ofx

  # Import all OFX files in a directory
  tally import-ofx ~/Downloads/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Parse and report without saving")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandFileArgs(args)
	if err != nil {
		return err
	}

	parser := ofx.NewParser()
	ctx := cmd.Context()

	// OFX carries its own account ids; group rows per account so each
	// account gets its own batch.
	byAccount := make(map[string][]model.Transaction)
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

		slog.Info("Parsed OFX export",
			"file", filepath.Base(filePath),
			"rows", len(parsed))
		for _, row := range parsed {
			byAccount[row.AccountID] = append(byAccount[row.AccountID], row)
		}
	}

	if len(byAccount) == 0 {
		fmt.Println(cli.FormatWarning("No rows found in any file"))
		return nil
	}

	if dryRun {
		for accountID, rows := range byAccount {
			fmt.Println(cli.FormatInfo(fmt.Sprintf("Dry run: account %s, %d rows parsed", accountID, len(rows))))
		}
		return nil
	}

	for accountID, rows := range byAccount {
		if err := ingestRows(cmd, accountID, rows); err != nil {
			return err
		}
	}

	return nil
}
