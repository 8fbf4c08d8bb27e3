package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/db"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	table   string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|trigger|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.table, "table", "", "table to publish on the change feed (for trigger)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogFormat == "console",
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})
	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "trigger":
		path, err := migrate.CreateTriggerMigration(opts.dir, opts.table)
		if err != nil {
			return err
		}
		fmt.Println("created trigger migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}

	if opts.cmd == "version" && opts.version == "" {
		return errors.New("missing -version for version command")
	}
	if cfg.DB.IsSQLite() {
		return errors.New("the feed trigger migrations need postgres; sqlite tables come from the dev auto-run")
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate ready")
	return apply(ctx, sqlDB, opts, logg)
}

func apply(ctx context.Context, sqlDB *sql.DB, opts options, logg *logger.Logger) error {
	if opts.cmd == "version" {
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	}
	return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd, logg)
}
