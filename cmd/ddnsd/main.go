package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	ddns "github.com/Travis-Britz/ddnsd"
)

var envFile = flag.String("env", ".env", "Optional dotenv file loaded into the environment")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(*envFile)
	if err != nil {
		return err
	}

	logger, flush, err := newLogger(cfg.Development, cfg.Verbosity)
	if err != nil {
		return err
	}
	defer flush()
	log := logger.WithName("ddnsd")
	log.Info("config loaded", "listen", cfg.Listen, "metrics", cfg.MetricsListen, "apiBase", cfg.APIBase)

	cf, err := ddns.NewCloudflare(
		ddns.WithAPIBase(cfg.APIBase),
		ddns.WithProviderLogger(logger.WithName("cloudflare")),
	)
	if err != nil {
		return fmt.Errorf("error creating cloudflare client: %w", err)
	}
	metrics := ddns.NewMetrics()
	svc := ddns.NewService(cf,
		ddns.WithLogger(logger.WithName("update")),
		ddns.WithMetrics(metrics),
	)

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	servers := []*http.Server{{
		Addr:              cfg.Listen,
		Handler:           ddns.NewRouter(svc, logger.WithName("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv // per-iteration copy (go 1.21 loop semantics)
		go func() {
			log.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("error serving %s: %w", srv.Addr, err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		srv := srv // per-iteration copy (go 1.21 loop semantics)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "shutdown failed", "addr", srv.Addr)
		}
	}
	return serveErr
}
