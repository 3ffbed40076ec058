package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/riskibarqy/fantasy-roster/internal/config"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "rosterctl",
		Usage: "operate the fantasy roster service: migrations, waiver runs and repairs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"APP_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			newMigrateCommand(),
			newReconcileCommand(),
			newLeagueJobCommand("process-waivers", "run one waiver batch for a league", runProcessWaivers),
			newLeagueJobCommand("clear-waivers", "release players whose waiver period ended", runClearWaivers),
			newLeagueJobCommand("repair-snapshots", "rebuild missing mutable snapshot days", runRepairSnapshots),
			newLockDayCommand(),
			newScheduleCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) *logging.Logger {
	logger := logging.NewJSON(logging.ParseLevel(c.String("log-level")), "rosterctl")
	logging.SetDefault(logger)
	return logger
}
