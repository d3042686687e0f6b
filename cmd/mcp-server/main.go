package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/pianificatore-mcp/internal/config"
	"github.com/malbeclabs/pianificatore-mcp/internal/duck"
	"github.com/malbeclabs/pianificatore-mcp/internal/logger"
	"github.com/malbeclabs/pianificatore-mcp/internal/metrics"
	"github.com/malbeclabs/pianificatore-mcp/internal/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Stdout carries the stdio transport.
	log := logger.New(os.Stderr, cfg.Verbose)
	log.Info("starting mcp server", "version", version, "commit", commit, "transport", cfg.Transport)

	var metricsServerErrCh = make(chan error, 1)
	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	session, err := duck.Open(ctx, log, cfg.SessionConfig(version))
	if err != nil {
		return fmt.Errorf("failed to open database session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error("failed to close database session", "error", err)
		}
	}()

	srv, err := server.New(server.Config{
		Logger:          log,
		Session:         session,
		Version:         version,
		Transport:       cfg.Transport,
		ListenAddr:      cfg.ListenAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		AllowedTokens:   cfg.AllowedTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		// Let the transport finish its shutdown before the session closes.
		return <-serverErrCh
	case err := <-serverErrCh:
		return err
	case err := <-metricsServerErrCh:
		return err
	}
}
