package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/webfsd/webfsd/internal/counter"
	"github.com/webfsd/webfsd/internal/logger"
	"github.com/webfsd/webfsd/internal/resolver"
	"github.com/webfsd/webfsd/internal/server"
	"github.com/webfsd/webfsd/pkg/config"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: webfsd [flags] <directory>")
	fmt.Fprintln(os.Stderr, "Example: webfsd ./content")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	flag.Usage = usage
	flag.Parse()

	// The served root is the single external configuration item.
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	root := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging)

	// Invalid root is a fatal startup condition; no connections are
	// accepted.
	res, err := resolver.New(root)
	if err != nil {
		logger.Error("Invalid root directory: %v", err)
		os.Exit(1)
	}

	limiter, err := config.CreateLimiter(&cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid rate limit configuration: %v", err)
		os.Exit(1)
	}

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		metricsResult.Server.Start()
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		MaxConnections:  cfg.Server.MaxConnections,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, res, limiter, counter.NewRegistry(), metricsResult.ServerMetrics)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Serving files from %s", res.Root())
	if err := srv.Serve(ctx); err != nil {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}

	if metricsResult.Server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		_ = metricsResult.Server.Stop(shutdownCtx)
	}

	logger.Info("Server stopped")
}

func setupLogger(cfg config.LoggingConfig) {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch cfg.Output {
	case "stdout", "":
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open log file %q: %v\n", cfg.Output, err)
			os.Exit(1)
		}
		logger.SetOutput(file)
	}
}
