package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/internal/config"
	pgInfra "github.com/miniconomy2025/sumsang-phones/internal/infrastructure/postgres"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "sumsang-phones",
		Usage: "phone manufacturer in the simulated economy",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the day scheduler",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:   "tick",
				Usage:  "poll the simulation clock once and run the pipeline if the day moved",
				Action: tick,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		AppName:  cfg.AppName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, zapLogger, nil
}

func serve(c *cli.Context) error {
	cfg, zapLogger, err := setup()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(c.Context)
	defer cancel()

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	a, err := build(appCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("startup failed", zap.Error(err))
	}
	a.manager.Listen(cancel)

	a.monitor.Start()
	a.manager.Register("monitor", func(ctx context.Context) error {
		a.monitor.Stop()
		return nil
	})

	if resumed, err := a.simulation.Resume(appCtx); err != nil {
		zapLogger.Warn("could not resume simulation", zap.Error(err))
	} else if resumed {
		zapLogger.Info("scheduler resumed from persisted clock")
	}
	a.manager.Register("scheduler", func(ctx context.Context) error {
		a.scheduler.Stop(ctx)
		return nil
	})

	server := &fasthttp.Server{
		Handler:            a.router.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	// registered last so it stops first
	a.manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := a.manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, zapLogger, err := setup()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("migrate needs STORAGE_DRIVER=%s", config.StoragePostgres)
	}
	cfg.Migrations.Enabled = true
	return pgInfra.RunMigrations(cfg, zapLogger)
}

func tick(c *cli.Context) error {
	cfg, zapLogger, err := setup()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if cfg.StorageDriver == config.StorageMemory {
		return fmt.Errorf("tick needs persistent storage, STORAGE_DRIVER=%s holds no clock", config.StorageMemory)
	}

	a, err := build(c.Context, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer a.manager.Shutdown(context.Background())

	a.monitor.Refresh()
	ctx, cancel := context.WithTimeout(c.Context, cfg.Simulation.DayLength)
	defer cancel()

	result, err := a.scheduler.Tick(ctx)
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(c.App.Writer, string(out))
	return err
}
