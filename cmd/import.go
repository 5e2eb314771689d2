package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/importer"
)

var flagDryRun bool

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load therapies, session plans and expenses from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Validate the file without writing")
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	file, err := importer.Load(f)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	db, _, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if flagDryRun {
		stored, err := db.Therapies(ctx)
		if err != nil {
			return err
		}
		if err := importer.Validate(file, stored); err != nil {
			return err
		}
		fmt.Printf("  %s is valid: %d therapies, %d plans, %d expenses\n",
			args[0], len(file.Therapies), len(file.Plans), len(file.Expenses))
		return nil
	}

	res, err := importer.Apply(ctx, db, file)
	if err != nil {
		return err
	}
	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(map[string]any{"imported": res, "stored": counts})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Headers: []string{"Records", "Imported", "Stored"},
		Rows: [][]string{
			{"Therapies", cli.FormatNumber(int64(res.Therapies)), cli.FormatNumber(int64(counts.Therapies))},
			{"Session plans", cli.FormatNumber(int64(res.Plans)), cli.FormatNumber(int64(counts.Plans))},
			{"Expenses", cli.FormatNumber(int64(res.Expenses)), cli.FormatNumber(int64(counts.Expenses))},
		},
	}))
	fmt.Printf("  Database: %s\n", cfg.DBPath())
	return nil
}
