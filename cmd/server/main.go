package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/logging"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	reconcileOnce := pflag.Bool("reconcile-once", false, "rebuild every pending set, print the report and exit")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	if *reconcileOnce {
		os.Exit(runReconcileOnce(ctx, app))
	}

	app.start(ctx)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"application": func(ctx context.Context) error {
				cancel()
				return app.shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

func runReconcileOnce(ctx context.Context, app *application) int {
	defer func() {
		if err := app.close(); err != nil {
			app.logger.Error("failed to close connections", "error", err)
		}
	}()

	report, err := app.engine.Reconcile(ctx)
	if err != nil {
		app.logger.Error("reconcile failed", "error", err)
		return 1
	}
	app.logger.Info("reconcile finished",
		"tasks_unassigned", report.TasksUnassigned,
		"users_repaired", report.UsersRepaired,
		"orphan_sets_cleared", report.OrphanSetsCleared)
	return 0
}
