package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/previ-optimizer/internal/modules/reporting"
	"github.com/google/subcommands"
)

// categoriesCmd holds the flags for the 'categories' subcommand.
type categoriesCmd struct {
	app  *App
	data string
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "display per-category yearly returns and volatility" }
func (*categoriesCmd) Usage() string {
	return `categories [-data <csv>]

  Displays the mean of each yearly return column and of volatility per
  category, with the average return across years.
`
}

func (c *categoriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.data, "data", c.app.Config.DatasetPath, "Prepared instrument CSV.")
}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ds, err := c.app.newService(nil).LoadDataset(ctx, c.data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %q: %v\n", c.data, err)
		return subcommands.ExitFailure
	}

	c.app.printMarkdown(reporting.CategoriesMarkdown(ds.Categories(), ds.Years()))
	return subcommands.ExitSuccess
}
