// Package cmd implements the praxis CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/config"
	"github.com/theirongolddev/praxis/internal/pipeline"
	"github.com/theirongolddev/praxis/internal/store"
)

var (
	flagDBPath   string
	flagFee      float64
	flagQuiet    bool
	flagLogLevel string
	flagJSON     bool
)

// rootCmd without a subcommand shows the current month against plan.
var rootCmd = &cobra.Command{
	Use:          "praxis",
	Short:        "Therapy practice finance CLI",
	Long:         "Revenue, costs, break-even, viability and forecasts for a therapy practice.",
	RunE:         runMetrics,
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (default from config)")
	rootCmd.PersistentFlags().Float64Var(&flagFee, "fee", -1, "Payment fee percent (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON instead of tables")

	addMetricsFlags(rootCmd)
}

// loadConfig reads the config file and layers command-line flags on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagDBPath != "" {
		cfg.Store.Path = flagDBPath
	}
	if flagFee >= 0 {
		cfg.Practice.FeePercent = flagFee
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagQuiet {
		cfg.Log.Level = "error"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for tables and --json output.
func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// openEngine opens the store and wires an engine over it. The caller owns
// closing the returned DB.
func openEngine(cfg config.Config, log *logrus.Logger) (*store.DB, *pipeline.Engine, error) {
	db, err := store.Open(cfg.DBPath(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	eng := pipeline.NewEngine(db, pipeline.Options{
		FeePercent:  cfg.Practice.FeePercent,
		TargetScore: cfg.Viability.TargetScore,
		Logger:      log,
	})
	return db, eng, nil
}
