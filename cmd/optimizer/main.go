// Command optimizer computes maximum Sharpe allocations from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/aristath/previ-optimizer/internal/cli"
	"github.com/aristath/previ-optimizer/internal/config"
	"github.com/aristath/previ-optimizer/pkg/logger"
	"github.com/google/subcommands"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	// Logs go to stderr, reports to stdout
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	app := cli.NewApp(cfg, log)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander, app)

	flag.BoolVar(&app.Raw, "raw", false, "Print markdown without terminal styling")
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
