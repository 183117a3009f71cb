package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/previ-optimizer/internal/modules/reporting"
	"github.com/google/subcommands"
)

// runsCmd holds the flags for the 'runs' subcommand.
type runsCmd struct {
	app   *App
	limit int
	id    string
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list stored optimization runs" }
func (*runsCmd) Usage() string {
	return `runs [-limit <n>] [-id <run id>]

  Lists the newest stored runs, or displays one run in full with -id.
`
}

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 10, "Number of runs to list.")
	f.StringVar(&c.id, "id", "", "Display this run instead of the list.")
}

func (c *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, db, err := c.app.openRuns()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening run history: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if c.id != "" {
		rec, err := repo.Get(ctx, c.id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading run %q: %v\n", c.id, err)
			return subcommands.ExitFailure
		}
		c.app.printMarkdown(reporting.Markdown(rec))
		return subcommands.ExitSuccess
	}

	records, err := repo.List(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing runs: %v\n", err)
		return subcommands.ExitFailure
	}
	c.app.printMarkdown(reporting.RunsMarkdown(records))
	return subcommands.ExitSuccess
}
