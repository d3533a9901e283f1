package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sejink/gatehouse/internal/config"
	"github.com/sejink/gatehouse/internal/db"
	"github.com/sejink/gatehouse/internal/gatehouse/device"
	"github.com/sejink/gatehouse/internal/gatehouse/registry"
	"github.com/sejink/gatehouse/internal/gatehouse/service"
	sqlitestore "github.com/sejink/gatehouse/internal/gatehouse/store/sqlite"
	"github.com/sejink/gatehouse/internal/httpapi"
	"github.com/sejink/gatehouse/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatehouse-server:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "", "path to server config YAML (optional)")
		listenAddr = pflag.String("addr", "", "listen address override")
		logLevel   = pflag.String("log-level", "", "log level override (debug|info|warn|error)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{ExitUser: cfg.ExitUser}); err != nil {
			return err
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	retention := time.Duration(cfg.LogRetentionDays) * 24 * time.Hour

	principalStore := sqlitestore.NewPrincipalStore(conn)
	eventStore := sqlitestore.NewEventLogStore(conn, writer, retention)
	statusStore := sqlitestore.NewDeviceStatusStore(conn, writer)

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return err
	}

	controller := device.NewController(reg, device.Options{
		Timeout: time.Duration(cfg.DeviceTimeoutSeconds) * time.Second,
		Status:  statusStore,
		Logger:  logger.With("component", "device"),
	})

	evaluator := service.NewEvaluator(cfg.TimezoneOffsetHours)

	gateSvc := service.NewGateService(
		principalStore, eventStore, controller, reg, evaluator,
		service.GateConfig{
			MainDevice:         cfg.MainDevice,
			ExitEvidenceDevice: cfg.ExitEvidenceDevice,
			ExitUser:           cfg.ExitUser,
			PulseSeconds:       cfg.OpenPulseSeconds,
		},
		logger.With("component", "gate"),
	)
	authSvc := service.NewAuthService(principalStore, logger.With("component", "auth"))

	sweeper := service.NewEvidenceSweeper(eventStore, service.SweeperConfig{
		RetentionDays: cfg.LogRetentionDays,
		IntervalHours: cfg.SweepIntervalHours,
	}, logger.With("component", "sweeper"))
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:       logger.With("component", "http"),
		Addr:         cfg.ListenAddr,
		GateService:  gateSvc,
		AuthService:  authSvc,
		EventLog:     eventStore,
		DB:           conn,
		Cameras:      reg,
		DeviceStatus: statusStore,
	})

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
