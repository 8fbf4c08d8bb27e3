// Package migrate applies the goose migrations that install the row change
// triggers behind the change feed.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/freshcut/chickenshop/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

func newProvider(db *sql.DB, dir string, dialect goose.Dialect) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	p, err := goose.NewProvider(dialect, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down or status against db. The feed triggers are
// plpgsql, so migrations always target postgres.
func Run(ctx context.Context, db *sql.DB, dir, command string, logg *logger.Logger) error {
	p, err := newProvider(db, dir, goose.DialectPostgres)
	if err != nil {
		return err
	}
	return runCommand(ctx, p, command, logg)
}

func runCommand(ctx context.Context, p *goose.Provider, command string, logg *logger.Logger) error {
	if logg == nil {
		logg = logger.Nop()
	}
	switch command {
	case "up":
		results, err := p.Up(ctx)
		logResults(ctx, logg, results...)
		return wrapCommand(command, err)
	case "down":
		result, err := p.Down(ctx)
		if result != nil {
			logResults(ctx, logg, result)
		}
		return wrapCommand(command, err)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return wrapCommand(command, err)
		}
		for _, s := range statuses {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"version":    s.Source.Version,
				"path":       s.Source.Path,
				"state":      string(s.State),
				"applied_at": s.AppliedAt,
			}), "migration status")
		}
		return nil
	}
	return fmt.Errorf("unsupported goose command %q", command)
}

func logResults(ctx context.Context, logg *logger.Logger, results ...*goose.MigrationResult) {
	for _, r := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     r.Source.Version,
			"direction":   r.Direction,
			"duration_ms": r.Duration.Milliseconds(),
		}), "migration applied")
	}
}

func wrapCommand(command string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	p, err := newProvider(db, dir, goose.DialectPostgres)
	if err != nil {
		return err
	}
	return moveTo(ctx, p, target)
}

func moveTo(ctx context.Context, p *goose.Provider, target int64) error {
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		_, err = p.UpTo(ctx, target)
	case current > target:
		_, err = p.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
