package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/fees"
	"github.com/theirongolddev/praxis/internal/model"
	"github.com/theirongolddev/praxis/internal/pipeline"
)

var (
	flagBEPrice      float64
	flagBEVariable   float64
	flagBEFixed      float64
	flagBEInvestment float64
	flagBEStart      float64
	flagBEGrowth     float64
)

var breakevenCmd = &cobra.Command{
	Use:   "breakeven",
	Short: "Sessions and months needed to break even",
	Long: "With --price, shows how many sessions cover --fixed costs.\n" +
		"With --start, finds the month a growing revenue pays back --investment.",
	RunE: runBreakEven,
}

func init() {
	breakevenCmd.Flags().Float64Var(&flagBEPrice, "price", 0, "Gross price per session")
	breakevenCmd.Flags().Float64Var(&flagBEVariable, "variable", 0, "Variable cost per session")
	breakevenCmd.Flags().Float64Var(&flagBEFixed, "fixed", 0, "Fixed costs per month")
	breakevenCmd.Flags().Float64Var(&flagBEInvestment, "investment", 0, "Initial investment to pay back")
	breakevenCmd.Flags().Float64Var(&flagBEStart, "start", 0, "Gross revenue of the first month")
	breakevenCmd.Flags().Float64Var(&flagBEGrowth, "growth", 0, "Monthly revenue growth in percent")
	rootCmd.AddCommand(breakevenCmd)
}

type sessionBreakEven struct {
	Cost     model.CostBreakdown `json:"cost"`
	Fixed    float64             `json:"fixed_costs"`
	Sessions pipeline.Units      `json:"sessions"`
}

type paybackBreakEven struct {
	Investment    float64 `json:"investment"`
	StartingGross float64 `json:"starting_gross"`
	GrowthPercent float64 `json:"growth_percent"`
	Fixed         float64 `json:"fixed_costs"`
	Month         int     `json:"month,omitempty"`
	Reached       bool    `json:"reached"`
	MaxMonths     int     `json:"max_months"`
	Balance       float64 `json:"balance"` // after MaxMonths, net of the investment
}

type breakEvenResult struct {
	FeePercent float64           `json:"fee_percent"`
	Session    *sessionBreakEven `json:"session,omitempty"`
	Payback    *paybackBreakEven `json:"payback,omitempty"`
}

func computeBreakEven(feePct float64, maxMonths int) breakEvenResult {
	res := breakEvenResult{FeePercent: feePct}
	if flagBEPrice > 0 {
		res.Session = &sessionBreakEven{
			Cost:     fees.BreakdownCost(flagBEPrice, flagBEVariable, feePct),
			Fixed:    flagBEFixed,
			Sessions: pipeline.Units(fees.BreakEvenUnits(flagBEFixed, flagBEPrice, flagBEVariable, feePct)),
		}
	}
	if flagBEStart > 0 {
		growth := flagBEGrowth / 100
		month, ok := fees.FindBreakEvenMonth(flagBEInvestment, flagBEStart, growth, flagBEFixed, maxMonths, feePct)
		res.Payback = &paybackBreakEven{
			Investment:    flagBEInvestment,
			StartingGross: flagBEStart,
			GrowthPercent: flagBEGrowth,
			Fixed:         flagBEFixed,
			Month:         month,
			Reached:       ok,
			MaxMonths:     maxMonths,
			Balance:       fees.CumulativeProfit(flagBEStart, growth, flagBEFixed, maxMonths, feePct) - flagBEInvestment,
		}
	}
	return res
}

func runBreakEven(_ *cobra.Command, _ []string) error {
	if flagBEPrice <= 0 && flagBEStart <= 0 {
		return errors.New("set --price for session break-even or --start for a payback timeline")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res := computeBreakEven(cfg.Practice.FeePercent, cfg.Forecast.MaxBreakEvenMonths)
	if flagJSON {
		return printJSON(res)
	}

	fmt.Println()
	if s := res.Session; s != nil {
		fmt.Println(cli.RenderTable(cli.Table{
			Title:   "Per Session",
			Headers: []string{"Line", "Amount"},
			Rows: [][]string{
				{"Price", cli.FormatEuro(s.Cost.Price)},
				{fmt.Sprintf("Fee (%s)", cli.FormatPercentage(s.Cost.FeePercent)), cli.FormatEuro(-s.Cost.FeeAmount)},
				{"Variable cost", cli.FormatEuro(-s.Cost.VariableCost)},
				{"---"},
				{"Margin", cli.RenderAmount(s.Cost.NetMargin)},
			},
		}))
		fmt.Println(cli.RenderKV([][2]string{
			{"Fixed costs", cli.FormatEuro(s.Fixed)},
			{"Sessions needed", cli.FormatUnits(float64(s.Sessions))},
		}))
	}
	if p := res.Payback; p != nil {
		payback := "not within " + cli.FormatMonths(p.MaxMonths)
		if p.Reached {
			payback = "after " + cli.FormatMonths(p.Month)
		}
		fmt.Println(cli.RenderKV([][2]string{
			{"Investment", cli.FormatEuro(p.Investment)},
			{"First month", cli.FormatEuro(p.StartingGross)},
			{"Growth", cli.FormatPercentage(p.GrowthPercent) + " / month"},
			{"Payback", payback},
			{"Balance after " + cli.FormatMonths(p.MaxMonths), cli.RenderAmount(p.Balance)},
		}))
	}
	return nil
}
