package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/aristath/previ-optimizer/internal/modules/charts"
	"github.com/aristath/previ-optimizer/internal/modules/reporting"
	"github.com/google/subcommands"
)

// sweepCmd holds the flags for the 'sweep' subcommand.
type sweepCmd struct {
	app      *App
	data     string
	caps     string
	chartDir string
}

func (*sweepCmd) Name() string     { return "sweep" }
func (*sweepCmd) Synopsis() string { return "optimize once per position cap and compare" }
func (*sweepCmd) Usage() string {
	return `sweep [-data <csv>] [-caps 0.1,0.2,0.4] [-chart <dir>]

  Runs one optimization per maximum position size over the same dataset and
  prints a comparison table. Infeasible caps are reported in the table.
`
}

func (c *sweepCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.data, "data", c.app.Config.DatasetPath, "Prepared instrument CSV.")
	f.StringVar(&c.caps, "caps", "0.1,0.2,0.3,0.4,0.5", "Comma-separated maximum position sizes.")
	f.StringVar(&c.chartDir, "chart", "", "Write one allocation chart per feasible cap to this directory.")
}

func parseCaps(s string) ([]float64, error) {
	var caps []float64
	for _, field := range strings.Split(s, ",") {
		v := strings.TrimSpace(field)
		if v == "" {
			continue
		}
		maxPos, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid position cap %q: %w", v, err)
		}
		caps = append(caps, maxPos)
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("no position cap given")
	}
	return caps, nil
}

func (c *sweepCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	caps, err := parseCaps(c.caps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	svc := c.app.newService(nil)
	ds, err := svc.LoadDataset(ctx, c.data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %q: %v\n", c.data, err)
		return subcommands.ExitFailure
	}

	entries, err := svc.Sweep(ctx, ds, caps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running sweep: %v\n", err)
		return subcommands.ExitFailure
	}

	c.app.printMarkdown(reporting.SweepMarkdown(entries))

	if c.chartDir == "" {
		return subcommands.ExitSuccess
	}
	chartService := charts.NewService(c.app.Log)
	for _, e := range entries {
		if e.Err != nil {
			continue
		}
		rows, err := allocation.Summarize(e.Portfolio, ds, svc.Defaults().MinWeight)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error summarizing cap %v: %v\n", e.MaxPositionSize, err)
			return subcommands.ExitFailure
		}
		path, err := chartService.WriteAllocation(c.chartDir, e.MaxPositionSize, rows, e.Portfolio.CompoundReturn(), len(ds.Returns().Years()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing chart: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.app.Out, "Chart written to %s\n", path)
	}
	return subcommands.ExitSuccess
}
