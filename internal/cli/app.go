// Package cli implements the optimizer subcommands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/aristath/previ-optimizer/internal/config"
	"github.com/aristath/previ-optimizer/internal/database"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/aristath/previ-optimizer/internal/modules/reporting"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	"github.com/aristath/previ-optimizer/internal/modules/universe"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// App carries what every subcommand needs.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Out    io.Writer
	Raw    bool // Print markdown as is, without terminal styling
}

// NewApp creates an App writing to stdout.
func NewApp(cfg *config.Config, log zerolog.Logger) *App {
	return &App{Config: cfg, Log: log, Out: os.Stdout}
}

// Register the subcommands.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&optimizeCmd{app: app}, "optimization")
	c.Register(&sweepCmd{app: app}, "optimization")
	c.Register(&categoriesCmd{app: app}, "dataset")
	c.Register(&runsCmd{app: app}, "history")
}

func (a *App) newService(store optimization.RunStore) *optimization.OptimizerService {
	loader := universe.NewLoader(a.Config.Universe, a.Log)
	return optimization.NewOptimizerService(
		loader,
		store,
		a.Config.DatasetPath,
		optimization.SettingsFromConfig(a.Config.Optimizer),
		a.Log,
	)
}

// openRuns opens and migrates the run history database. The caller closes it.
func (a *App) openRuns() (*runs.Repository, *database.DB, error) {
	db, err := database.New(database.Config{
		Path:    a.Config.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return runs.NewRepository(db.Conn(), a.Log), db, nil
}

func (a *App) printMarkdown(md string) {
	if a.Raw {
		fmt.Fprint(a.Out, md)
		return
	}
	out, err := reporting.Render(md)
	if err != nil {
		a.Log.Warn().Err(err).Msg("Falling back to plain markdown")
		out = md
	}
	fmt.Fprint(a.Out, out)
}
