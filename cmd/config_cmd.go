package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cfg)
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	name := cfg.Practice.Name
	if name == "" {
		name = "not set"
	}
	fmt.Println("  [Practice]")
	fmt.Print(cli.RenderKV([][2]string{
		{"Name", name},
		{"Payment fee", cli.FormatPercentage(cfg.Practice.FeePercent)},
		{"Currency", cfg.Practice.Currency},
	}))
	fmt.Println()

	fmt.Println("  [Forecast]")
	fmt.Print(cli.RenderKV([][2]string{
		{"Months ahead", cli.FormatMonths(cfg.Forecast.MonthsAhead)},
		{"History", cli.FormatMonths(cfg.Forecast.HistoryMonths)},
		{"Break-even horizon", cli.FormatMonths(cfg.Forecast.MaxBreakEvenMonths)},
	}))
	fmt.Println()

	fmt.Println("  [Viability]")
	fmt.Print(cli.RenderKV([][2]string{
		{"Target score", cli.FormatScore(cfg.Viability.TargetScore)},
	}))
	fmt.Println()

	fmt.Println("  [Store]")
	fmt.Print(cli.RenderKV([][2]string{
		{"Database", cfg.DBPath()},
	}))
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Print(cli.RenderKV([][2]string{
		{"Address", cfg.Daemon.Addr},
		{"Refresh", cfg.Daemon.Refresh},
		{"Events buffer", cli.FormatNumber(int64(cfg.Daemon.EventsBuffer))},
		{"Scope", cfg.Daemon.Scope + " vs " + cfg.Daemon.Compare},
	}))
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Print(cli.RenderKV([][2]string{
		{"Level", cfg.Log.Level},
		{"Format", cfg.Log.Format},
	}))
	fmt.Println()

	fmt.Println("  Run `praxis setup` to reconfigure.")
	return nil
}
