package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v2"

	"github.com/riskibarqy/fantasy-roster/internal/app"
	"github.com/riskibarqy/fantasy-roster/internal/config"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

var leagueFlag = &cli.StringFlag{Name: "league", Usage: "league public id", Required: true}

type leagueJob func(ctx context.Context, a *app.App, leagueID string) (any, error)

// withApp wires the service the same way the API does, with the event
// router running, and tears it down after fn returns.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) (any, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Jobs run inline here; queueing them elsewhere would outlive the command.
	cfg.QStashEnabled = false
	logger := newLogger(c)
	defer func() { _ = logger.Sync() }()

	ctx := c.Context
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Close(closeCtx)
	}()

	eventsCtx, stopEvents := context.WithCancel(ctx)
	defer stopEvents()
	if err := application.StartEvents(eventsCtx); err != nil {
		return fmt.Errorf("start event router: %w", err)
	}

	result, err := fn(ctx, application)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}

func newLeagueJobCommand(name, usage string, run leagueJob) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{leagueFlag},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) (any, error) {
				return run(ctx, a, c.String("league"))
			})
		},
	}
}

func runProcessWaivers(ctx context.Context, a *app.App, leagueID string) (any, error) {
	return a.Waivers.ProcessWaiverBatch(ctx, leagueID)
}

func runClearWaivers(ctx context.Context, a *app.App, leagueID string) (any, error) {
	cleared, err := a.Waivers.ClearExpiredWaivers(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"league_id": leagueID, "cleared": cleared}, nil
}

func runRepairSnapshots(ctx context.Context, a *app.App, leagueID string) (any, error) {
	return a.Snapshots.RepairMissingDays(ctx, leagueID)
}

func newLockDayCommand() *cli.Command {
	return &cli.Command{
		Name:  "lock-day",
		Usage: "freeze every team's snapshot rows for one league day",
		Flags: []cli.Flag{
			leagueFlag,
			&cli.StringFlag{Name: "day", Usage: "YYYY-MM-DD, defaults to today in UTC"},
		},
		Action: func(c *cli.Context) error {
			day := time.Now().UTC()
			if raw := c.String("day"); raw != "" {
				parsed, err := time.Parse(time.DateOnly, raw)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", raw, err)
				}
				day = parsed
			}
			return withApp(c, func(ctx context.Context, a *app.App) (any, error) {
				return a.Snapshots.LockDay(ctx, c.String("league"), day)
			})
		},
	}
}

func newReconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "rebuild a team roster from its ledger",
		Flags: []cli.Flag{
			leagueFlag,
			&cli.StringFlag{Name: "team", Usage: "team public id", Required: true},
			&cli.BoolFlag{Name: "apply", Usage: "write the rebuilt roster; without it only the diff is printed"},
			&cli.StringFlag{Name: "actor", Usage: "user id recorded on the reconcile ledger entry", EnvVars: []string{"USER"}},
			&cli.StringFlag{Name: "reason", Usage: "audit reason", Value: "manual reconcile"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) (any, error) {
				return a.Roster.ReconcileFromLedger(ctx, usecase.ReconcileRosterInput{
					LeagueID:    c.String("league"),
					TeamID:      c.String("team"),
					DryRun:      !c.Bool("apply"),
					ActorUserID: c.String("actor"),
					Reason:      c.String("reason"),
				})
			})
		},
	}
}

func newScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "plan due league jobs and print what would be queued",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "league", Usage: "limit to one league"},
			&cli.BoolFlag{Name: "force", Usage: "run waiver jobs now instead of at the configured hour"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) (any, error) {
				return a.Jobs.RunWaiverSchedule(ctx, usecase.JobSyncInput{
					LeagueID: c.String("league"),
					Force:    c.Bool("force"),
				})
			})
		},
	}
}
