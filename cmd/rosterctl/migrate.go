package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/urfave/cli/v2"
)

func newMigrateCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "db-url", Usage: "postgres connection url", EnvVars: []string{"DB_URL"}, Required: true},
		&cli.StringFlag{Name: "dir", Usage: "migrations directory", EnvVars: []string{"MIGRATIONS_DIR"}},
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply every pending migration",
				Flags: flags,
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					if err := ignoreNoChange(m.Up()); err != nil {
						return err
					}
					fmt.Println("migrations applied")
					return nil
				}),
			},
			{
				Name:      "down",
				Usage:     "roll back N migrations",
				ArgsUsage: "[steps]",
				Flags:     flags,
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					steps := 1
					if c.Args().Present() {
						if _, err := fmt.Sscan(c.Args().First(), &steps); err != nil || steps <= 0 {
							return fmt.Errorf("down steps must be a positive number, got %q", c.Args().First())
						}
					}
					if err := ignoreNoChange(m.Steps(-steps)); err != nil {
						return err
					}
					fmt.Printf("rolled back %d migration(s)\n", steps)
					return nil
				}),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Flags: flags,
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						fmt.Println("version: none")
						return nil
					}
					if err != nil {
						return fmt.Errorf("read version: %w", err)
					}
					fmt.Printf("version: %d dirty: %t\n", version, dirty)
					return nil
				}),
			},
			{
				Name:      "force",
				Usage:     "set the schema version without running migrations",
				ArgsUsage: "<version>",
				Flags:     flags,
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					var version int
					if _, err := fmt.Sscan(c.Args().First(), &version); err != nil || version < 0 {
						return fmt.Errorf("force requires a version >= 0")
					}
					if err := m.Force(version); err != nil {
						return fmt.Errorf("force version %d: %w", version, err)
					}
					fmt.Printf("forced version to %d\n", version)
					return nil
				}),
			},
			{
				Name:      "goto",
				Usage:     "migrate up or down to a version",
				ArgsUsage: "<version>",
				Flags:     flags,
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					var target uint
					if _, err := fmt.Sscan(c.Args().First(), &target); err != nil {
						return fmt.Errorf("goto requires a target version")
					}
					if err := ignoreNoChange(m.Migrate(target)); err != nil {
						return err
					}
					fmt.Printf("migrated to version %d\n", target)
					return nil
				}),
			},
		},
	}
}

func withMigrator(fn func(c *cli.Context, m *migrate.Migrate) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		dir, err := resolveMigrationsDir(c.String("dir"))
		if err != nil {
			return err
		}
		m, err := migrate.New("file://"+filepath.ToSlash(dir), c.String("db-url"))
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			srcErr, dbErr := m.Close()
			if srcErr != nil || dbErr != nil {
				fmt.Fprintf(os.Stderr, "close migrator: source=%v db=%v\n", srcErr, dbErr)
			}
		}()
		return fn(c, m)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no migration changes")
		return nil
	}
	return err
}

func resolveMigrationsDir(explicit string) (string, error) {
	candidates := []string{strings.TrimSpace(explicit), "./db/migrations", "/app/db/migrations"}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("migration directory not found (checked --dir, ./db/migrations, /app/db/migrations)")
}
