package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/previ-optimizer/internal/modules/charts"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/aristath/previ-optimizer/internal/modules/reporting"
	"github.com/google/subcommands"
)

// optimizeCmd holds the flags for the 'optimize' subcommand.
type optimizeCmd struct {
	app *App

	data          string
	maxPosition   float64
	riskFree      float64
	minWeight     float64
	maxIterations int
	chartDir      string
	save          bool
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "compute the maximum Sharpe allocation" }
func (*optimizeCmd) Usage() string {
	return `optimize [-data <csv>] [-max-position <w>] [-risk-free <r>] [-min-weight <w>] [-chart <dir>] [-save]

  Optimizes the instrument universe for the Sharpe ratio under a position cap
  and prints the portfolio metrics and allocation table.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	opt := c.app.Config.Optimizer
	f.StringVar(&c.data, "data", c.app.Config.DatasetPath, "Prepared instrument CSV.")
	f.Float64Var(&c.maxPosition, "max-position", opt.MaxPositionSize, "Maximum weight of a single instrument, in (0,1].")
	f.Float64Var(&c.riskFree, "risk-free", opt.RiskFreeRate, "Annual risk-free rate as a fraction.")
	f.Float64Var(&c.minWeight, "min-weight", opt.MinWeight, "Positions below this weight are left out of the table.")
	f.IntVar(&c.maxIterations, "max-iterations", opt.MaxIterations, "Solver iteration cap.")
	f.StringVar(&c.chartDir, "chart", "", "Write the allocation chart to this directory.")
	f.BoolVar(&c.save, "save", false, "Store the run in the history database.")
}

func (c *optimizeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var store optimization.RunStore
	if c.save {
		repo, db, err := c.app.openRuns()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening run history: %v\n", err)
			return subcommands.ExitFailure
		}
		defer db.Close()
		store = repo
	}

	result, err := c.app.newService(store).Run(ctx, optimization.Request{
		DatasetPath: c.data,
		Settings: &optimization.Settings{
			RiskFreeRate:    c.riskFree,
			MaxPositionSize: c.maxPosition,
			MinWeight:       c.minWeight,
			MaxIterations:   c.maxIterations,
		},
		Save: c.save,
	})
	if errors.Is(err, optimization.ErrInvalidSettings) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error optimizing %q: %v\n", c.data, err)
		return subcommands.ExitFailure
	}

	c.app.printMarkdown(reporting.Markdown(result.Record()))

	if c.chartDir != "" {
		path, err := charts.NewService(c.app.Log).WriteAllocation(
			c.chartDir,
			result.Settings.MaxPositionSize,
			result.Allocation,
			result.Portfolio.CompoundReturn(),
			result.Years,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing chart: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.app.Out, "Chart written to %s\n", path)
	}
	if result.Saved {
		fmt.Fprintf(c.app.Out, "Run stored as %s\n", result.ID)
	}

	return subcommands.ExitSuccess
}
