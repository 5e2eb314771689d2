package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/config"
	"github.com/theirongolddev/praxis/internal/fees"
	"github.com/theirongolddev/praxis/internal/model"
	"github.com/theirongolddev/praxis/internal/pipeline"
)

var (
	flagHistory int
	flagMonths  int
	flagFixed   float64
	flagPlanned float64
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project monthly revenue from session history",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().IntVar(&flagHistory, "history", 0, "Months of history to fit (default from config)")
	forecastCmd.Flags().IntVar(&flagMonths, "months", 0, "Months to forecast (default from config)")
	forecastCmd.Flags().Float64Var(&flagFixed, "fixed", 0, "Monthly fixed costs (default: average expenses)")
	forecastCmd.Flags().Float64Var(&flagPlanned, "planned", 0, "Planned monthly revenue (default: this month's plan)")
	forecastCmd.Flags().StringVar(&flagAt, "at", "", "Reference date, YYYY-MM or YYYY-MM-DD (default today)")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	at, err := parseAt(flagAt)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req := forecastRequest(cmd, cfg, at)

	log := newLogger(cfg)
	db, eng, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	fr, err := eng.Forecast(context.Background(), req)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(fr)
	}
	renderForecast(fr)
	return nil
}

// forecastRequest leaves an amount nil unless its flag was given, so an explicit
// zero is kept.
func forecastRequest(cmd *cobra.Command, cfg config.Config, at time.Time) pipeline.ForecastRequest {
	req := pipeline.ForecastRequest{
		HistoryMonths: cfg.Forecast.HistoryMonths,
		MonthsAhead:   cfg.Forecast.MonthsAhead,
		At:            at,
	}
	if flagHistory > 0 {
		req.HistoryMonths = flagHistory
	}
	if flagMonths > 0 {
		req.MonthsAhead = flagMonths
	}
	if cmd.Flags().Changed("fixed") {
		fixed := flagFixed
		req.FixedCosts = &fixed
	}
	if cmd.Flags().Changed("planned") {
		planned := flagPlanned
		req.PlannedRevenue = &planned
	}
	return req
}

func renderForecast(fr *pipeline.ForecastReport) {
	fmt.Println()
	fmt.Println(cli.RenderTitle("Revenue Forecast"))
	fmt.Println()

	if len(fr.History) == 0 {
		fmt.Printf("  %s\n\n", cli.RenderMuted("No session history yet; showing a neutral projection."))
	} else {
		values := make([]float64, len(fr.History))
		for i, h := range fr.History {
			values[i] = h.Revenue
		}
		fmt.Printf("  History  %s  %s..%s\n\n", cli.RenderSparkline(values),
			fr.History[0].Month, fr.History[len(fr.History)-1].Month)
	}

	rows := make([][]string, 0, len(fr.Points))
	for _, p := range fr.Points {
		rows = append(rows, []string{
			p.Month,
			cli.FormatEuro(p.ForecastedRevenue),
			cli.FormatEuro(p.LowerBound) + " - " + cli.FormatEuro(p.UpperBound),
			cli.FormatPercentage(p.Confidence * 100),
			cli.RenderAmount(netAfterCosts(p, fr)),
		})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Headers: []string{"Month", "Forecast", "Range", "Confidence", "After Costs"},
		Rows:    rows,
	}))

	breakEven := "not within horizon"
	if fr.BreakEven != nil {
		breakEven = fr.BreakEven.Month
	}
	fmt.Println(cli.RenderKV([][2]string{
		{"Fixed costs", cli.FormatEuro(fr.FixedCosts) + " / month"},
		{"Planned", cli.FormatEuro(fr.PlannedRevenue) + " / month"},
		{"Trend", cli.FormatPercentage(fr.Trend)},
		{"Break-even", breakEven},
		{"Risk", fmt.Sprintf("%s (%d of %d months)", fr.Risk.Level, fr.Risk.MonthsAtRisk, fr.Risk.TotalMonths)},
	}))

	for _, c := range fr.TrendChanges {
		fmt.Printf("  %s %s: %s -> %s\n", cli.RenderMuted("growth shift"), c.Month,
			cli.FormatPercentage(c.Before), cli.FormatPercentage(c.After))
	}
	fmt.Println()
}

// netAfterCosts is the forecast month's net revenue minus fixed costs.
func netAfterCosts(p model.ForecastDataPoint, fr *pipeline.ForecastReport) float64 {
	return fees.Net(p.ForecastedRevenue, fr.FeePercent) - fr.FixedCosts
}
