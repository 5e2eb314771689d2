package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupValues holds the form fields as text until the form completes.
type setupValues struct {
	name      string
	fee       string
	target    string
	dbPath    string
	logFormat string
	confirm   bool
}

func newSetupValues(cfg config.Config) setupValues {
	return setupValues{
		name:      cfg.Practice.Name,
		fee:       strconv.FormatFloat(cfg.Practice.FeePercent, 'f', -1, 64),
		target:    strconv.FormatFloat(cfg.Viability.TargetScore, 'f', -1, 64),
		dbPath:    cfg.DBPath(),
		logFormat: cfg.Log.Format,
		confirm:   true,
	}
}

// apply copies the form values into cfg.
func (v setupValues) apply(cfg *config.Config) error {
	fee, err := parseDecimal(v.fee)
	if err != nil {
		return fmt.Errorf("fee percent: %w", err)
	}
	target, err := parseDecimal(v.target)
	if err != nil {
		return fmt.Errorf("target score: %w", err)
	}
	cfg.Practice.Name = strings.TrimSpace(v.name)
	cfg.Practice.FeePercent = fee
	cfg.Viability.TargetScore = target
	cfg.Log.Format = v.logFormat
	if p := strings.TrimSpace(v.dbPath); p != config.DefaultDBPath() {
		cfg.Store.Path = p
	}
	return cfg.Validate()
}

// parseDecimal accepts both "1.39" and "1,39".
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

func validateDecimal(s string) error {
	_, err := parseDecimal(s)
	return err
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg, _ := config.Load()
	vals := newSetupValues(cfg)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Practice name").
				Placeholder("Praxis am Park").
				Value(&vals.name),
			huh.NewInput().
				Title("Payment fee (%)").
				Description("Card terminal or payment provider fee per session.").
				Value(&vals.fee).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Target viability score").
				Description("Improvement suggestions aim for this score (0-100).").
				Value(&vals.target).
				Validate(validateDecimal),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database path").
				Value(&vals.dbPath),
			huh.NewSelect[string]().
				Title("Log format").
				Options(
					huh.NewOption("Text", "text"),
					huh.NewOption("JSON", "json"),
				).
				Value(&vals.logFormat),
			huh.NewConfirm().
				Title("Save configuration?").
				Value(&vals.confirm),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled.")
			return nil
		}
		return fmt.Errorf("running setup form: %w", err)
	}
	if !vals.confirm {
		fmt.Println("  Nothing saved.")
		return nil
	}

	if err := vals.apply(&cfg); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `praxis setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
