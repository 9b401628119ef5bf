package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/api"
	"github.com/repowatch/repowatch/server/internal/auth"
	"github.com/repowatch/repowatch/server/internal/config"
	"github.com/repowatch/repowatch/server/internal/notify"
	"github.com/repowatch/repowatch/server/internal/receiver"
	"github.com/repowatch/repowatch/server/internal/store"
	"github.com/repowatch/repowatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	wsInterval := flag.Duration("ws-interval", 5*time.Second, "how often /ws/events clients receive a full snapshot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("repowatch-server starting",
		"config", *configPath,
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
		"dry_run", cfg.Notify.DryRun,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := notify.NewRouter(cfg.Alerts.Channels, notify.NewSenders(cfg.Notify),
		notify.WithRateWindow(cfg.Alerts.RateWindow),
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithRegisterer(reg),
	)

	engine, err := alerts.New(cfg.Alerts, router, alerts.WithMetrics(alerts.NewMetrics(reg)))
	if err != nil {
		slog.Error("failed to build alert engine", "err", err)
		os.Exit(1)
	}
	defer engine.Close()

	st := store.New(cfg.Server.Snapshot.TTL)

	sweeper := alerts.NewSweeper(engine, cfg.Alerts.MaintenanceSchedule, router, st)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			slog.Error("maintenance sweeper stopped", "err", err)
		}
	}()

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			if err := engine.Reload(next.Alerts); err != nil {
				slog.Error("config reload rejected", "err", err)
				return
			}
			router.SetChannels(next.Alerts.Channels)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	// gRPC ingestion with optional API key authentication.
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(auth.APIKeyInterceptor(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)))
	receiver.New(engine, st).Register(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	hub := ws.New(engine, *wsInterval)
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/ws/events", hub)
	httpMux.Handle("/", api.New(engine, st,
		api.WithGatherer(reg),
		api.WithSweeper(sweeper),
		api.WithChannels(router),
	))

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: auth.Middleware(
			cfg.Server.Auth.Mode,
			cfg.Server.Auth.EffectiveHeader(),
			cfg.Server.Auth.Key(),
			"/api/v1/health", "/metrics",
		)(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("repowatch-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	grpcSrv.GracefulStop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
