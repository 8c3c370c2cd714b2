package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/audit"
	"github.com/Ap1297/Random-Chat-Application/internal/config"
	"github.com/Ap1297/Random-Chat-Application/internal/core"
	httpapi "github.com/Ap1297/Random-Chat-Application/internal/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config failed", "err", err)
		os.Exit(1)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.StringVar(&cfg.AuditPath, "audit-path", cfg.AuditPath, "audit jsonl path (empty disables)")
	flag.StringVar(&cfg.AuditSQLite, "audit-sqlite", cfg.AuditSQLite, "audit sqlite path (empty disables)")
	flag.BoolVar(&cfg.TrustProxyHeaders, "trust-proxy-headers", cfg.TrustProxyHeaders, "key connect rate limits on X-Forwarded-For")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		slog.Error("config rejected", "err", err)
		os.Exit(1)
	}

	journal, err := openJournal(cfg)
	if err != nil {
		slog.Error("open audit journal failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	relay := core.NewRelay(core.Config{
		Logger:  slog.Default(),
		Journal: journal,
		Metrics: core.NewMetrics(reg),
	})

	api := &httpapi.Server{
		Relay:    relay,
		Config:   cfg,
		Gatherer: reg,
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("random-chat listening", "addr", cfg.Addr, "origins", cfg.AllowedOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("random-chat shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		api.CloseConnections()
		return multierr.Append(err, relay.Close())
	})
	if err := g.Wait(); err != nil {
		slog.Error("random-chat stopped with error", "err", err)
		os.Exit(1)
	}
}

func openJournal(cfg config.Config) (audit.Journal, error) {
	switch {
	case cfg.AuditSQLite != "":
		return audit.NewSQLiteJournal(cfg.AuditSQLite)
	case cfg.AuditPath != "":
		return audit.NewFileJournal(cfg.AuditPath)
	default:
		return audit.Nop(), nil
	}
}
