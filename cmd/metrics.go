package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/pipeline"
)

var (
	flagScope   string
	flagCompare string
	flagAt      string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Revenue, costs, viability and variance alerts for a period",
	RunE:  runMetrics,
}

func init() {
	addMetricsFlags(metricsCmd)
	rootCmd.AddCommand(metricsCmd)
}

func addMetricsFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagScope, "scope", "s", "month", "Period scope: month, quarter, year, allTime")
	c.Flags().StringVarP(&flagCompare, "compare", "c", "plan", "Comparison: none, plan, lastPeriod, lastYear")
	c.Flags().StringVar(&flagAt, "at", "", "Reference date, YYYY-MM or YYYY-MM-DD (default today)")
}

// parseAt accepts a month or a day. Empty means "now".
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: want YYYY-MM or YYYY-MM-DD", s)
}

func runMetrics(_ *cobra.Command, _ []string) error {
	scope, err := pipeline.ParseScope(flagScope)
	if err != nil {
		return err
	}
	cmp, err := pipeline.ParseComparison(flagCompare)
	if err != nil {
		return err
	}
	at, err := parseAt(flagAt)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	db, eng, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	rep, err := eng.Compute(context.Background(), pipeline.Request{Scope: scope, Compare: cmp, At: at})
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(rep)
	}
	renderReport(rep, cfg.Practice.Name)
	return nil
}

func renderReport(rep *pipeline.Report, practice string) {
	title := "Praxis"
	if practice != "" {
		title = practice
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s  |  %s  |  %s", title, rep.Scope, rep.Period.Label())))
	fmt.Println()

	fmt.Println(cli.RenderTable(cli.Table{
		Title:   "Income Statement",
		Headers: []string{"Line", "Amount"},
		Rows: [][]string{
			{"Gross revenue", cli.FormatEuro(rep.GrossRevenue)},
			{fmt.Sprintf("Payment fees (%s)", cli.FormatPercentage(rep.FeePercent)), cli.FormatEuro(-rep.FeeAmount)},
			{"Net revenue", cli.FormatEuro(rep.NetRevenue)},
			{"Variable costs", cli.FormatEuro(-rep.VariableCosts)},
			{"Expenses", cli.FormatEuro(-rep.Expenses)},
			{"---"},
			{"Net income", cli.RenderAmount(rep.NetIncome)},
			{"Margin", cli.FormatPercentage(rep.Margin.MarginPercent)},
		},
	}))

	if len(rep.Therapies) > 0 {
		rows := make([][]string, 0, len(rep.Therapies))
		for _, l := range rep.Therapies {
			rows = append(rows, []string{
				l.Therapy.Name,
				fmt.Sprintf("%d / %d", l.Sessions.Actual, l.Sessions.Planned),
				cli.FormatPercentage(l.Sessions.UtilizationRate),
				cli.FormatEuro(l.NetRevenue),
				cli.FormatEuro(l.Cost.NetMargin),
				cli.FormatUnits(float64(l.BreakEvenSessions)),
			})
		}
		fmt.Println(cli.RenderTable(cli.Table{
			Title:   "Therapies",
			Headers: []string{"Therapy", "Sessions", "Utilization", "Net Revenue", "Margin/Session", "Break-even"},
			Rows:    rows,
		}))
	}

	fmt.Println(cli.RenderKV([][2]string{
		{"Viability", cli.RenderScoreBar(rep.Viability.Score, 30)},
		{"Status", cli.RenderStatus(rep.Viability.Status)},
		{"Break-even", string(rep.Status)},
		{"Constraint", fmt.Sprintf("%s (%s)", rep.Constraint.Name, cli.FormatScore(rep.Constraint.Value))},
		{"Sessions", fmt.Sprintf("%d of %d planned", rep.ActualSessions, rep.PlannedSessions)},
		{"Data", string(rep.DataQuality)},
	}))

	if p := rep.Improvement; p.TargetScore > p.CurrentScore {
		fmt.Println(cli.RenderKV([][2]string{
			{"Target", cli.FormatScore(p.TargetScore) + " (" + string(p.Feasibility) + ")"},
			{"Revenue needed", cli.FormatEuro(p.RevenueNeeded)},
			{"Or cut expenses", cli.FormatEuro(p.ExpenseReductionNeeded)},
			{"Extra sessions", cli.FormatNumber(int64(p.AdditionalSessions))},
		}))
	}

	if rep.ComparisonPeriod == nil {
		return
	}
	fmt.Printf("  %s\n", cli.RenderMuted(fmt.Sprintf("Compared with %s (%s)", rep.Comparison, rep.ComparisonPeriod.Label())))
	if len(rep.Alerts) == 0 {
		fmt.Printf("  No variance alerts.\n\n")
		return
	}
	for _, a := range rep.Alerts {
		fmt.Printf("  %s  %s\n", cli.RenderSeverity(a.Severity), a.Title)
		fmt.Printf("      %s\n", cli.RenderMuted(a.Message))
		for _, item := range a.ActionItems {
			fmt.Printf("      - %s\n", item)
		}
	}
	fmt.Println()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
