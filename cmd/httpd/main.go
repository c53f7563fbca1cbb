package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"

	"github.com/nczempin/httpd-go/config"
	"github.com/nczempin/httpd-go/dispatch"
	"github.com/nczempin/httpd-go/logging"
	"github.com/nczempin/httpd-go/resource"
	"github.com/nczempin/httpd-go/server"
	"github.com/nczempin/httpd-go/transport"
)

type closingProvider interface {
	resource.Provider
	Close() error
}

func openProvider(cfg config.Config) (closingProvider, error) {
	if cfg.IoUring {
		return resource.OpenUringDir(cfg.Root)
	}
	return resource.OpenDir(cfg.Root)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) (err error) {
	provider, err := openProvider(cfg)
	if err != nil {
		return fmt.Errorf("open root: %w", err)
	}
	defer func() {
		err = multierr.Append(err, provider.Close())
	}()

	dispatcher := dispatch.New(provider, dispatch.Config{
		ChunkSize: cfg.ChunkSize,
		Logger:    logger,
	})

	srv := server.New(dispatcher, server.Config{
		MaxRequestBytes: cfg.MaxRequestBytes,
		MaxConnections:  int64(cfg.MaxConnections),
		Transport: transport.Options{
			Timeouts: transport.Timeouts{
				Read:  cfg.ReadTimeout,
				Write: cfg.WriteTimeout,
			},
			IoUring: cfg.IoUring,
		},
		Logger: logger,
	})

	logger.InfoContext(ctx, "Serving files.", slog.String("root", cfg.Root), slog.Bool("io_uring", cfg.IoUring))
	return srv.ListenAndServe(ctx, cfg.Network, cfg.Address)
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "httpd: %v\n", err)
		os.Exit(2)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "httpd: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogFormat, level, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "httpd: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.LogError(ctx, logger, "The server failed.", err)
		stop()
		os.Exit(1)
	}
}
