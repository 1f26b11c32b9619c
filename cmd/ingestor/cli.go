package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"

	"video_ingestor/internal/api"
	"video_ingestor/internal/config"
	"video_ingestor/internal/export"
	"video_ingestor/internal/scheduler"
	"video_ingestor/internal/storage/postgres"
)

const shutdownTimeout = 15 * time.Second

func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "ingestor",
		Usage:   "Continuously ingest recent videos into the catalog",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				EnvVars: []string{"INGESTOR_CONFIG"},
				Usage:   "Path to the YAML config file",
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			serveCmd(),
			exportCmd(),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// runCmd performs a single ingestion cycle and prints its stats.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one ingestion cycle and print the stats as JSON",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()
			ctx, cancelRun := context.WithTimeout(ctx, cfg.Schedule.RunTimeout)
			defer cancelRun()

			deps, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			stats, runErr := deps.service.Ingest(ctx)
			if stats != nil {
				if err := printJSON(c.App.Writer, stats); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

// serveCmd runs the scheduler and the admin API until interrupted.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Ingest on a schedule and expose the admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Admin listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Admin.Addr = addr
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			deps, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			sched, err := scheduler.NewScheduler(deps.service, cfg.Schedule.Cron, cfg.Schedule.RunTimeout, logger)
			if err != nil {
				return err
			}

			router := mux.NewRouter()
			api.NewHTTPHandler(deps.service, deps.registry, cfg.Schedule.RunTimeout, logger).Register(router)
			server := &http.Server{
				Addr:              cfg.Admin.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info("admin api listening", "addr", cfg.Admin.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
					cancel()
				}
			}()

			logger.Info("starting video ingestor",
				"schedule", cfg.Schedule.Cron,
				"min_duration_seconds", cfg.Ingest.MinDurationSeconds,
				"max_iterations", cfg.Ingest.MaxIterations,
			)

			schedErr := sched.Start(ctx)

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("admin api shutdown failed", "error", err)
			}

			select {
			case err := <-serverErr:
				return fmt.Errorf("admin api: %w", err)
			default:
			}
			if schedErr != nil && !errors.Is(schedErr, context.Canceled) {
				return schedErr
			}
			logger.Info("video ingestor stopped")
			return nil
		},
	}
}

// exportCmd writes the catalog to an xlsx workbook.
func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the catalog to an Excel workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "exports/videos.xlsx", Usage: "Output file"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			db, err := connectDatabase(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			exporter := export.NewExporter(postgres.NewVideoStore(db), logger)
			n, err := exporter.WriteFile(ctx, c.String("out"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "exported %d videos to %s\n", n, c.String("out"))
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
