package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samvad-hq/samvad-apicaller/internal/app"
	"github.com/samvad-hq/samvad-apicaller/internal/config"
	"github.com/samvad-hq/samvad-apicaller/internal/logger"
	"github.com/samvad-hq/samvad-apicaller/internal/relay"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apirelay start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("apirelay", pflag.ContinueOnError)
	flags.String("relay-addr", "", "listen address")
	flags.String("profiles-file", "", "profiles YAML/JSON file")
	flags.String("publishers-file", "", "publishers YAML/JSON file")
	flags.String("log-level", "", "log level")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("apirelay starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caller, err := app.NewCaller(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize caller", "error", err)
		return err
	}
	defer caller.Close()

	srv := &http.Server{
		Addr:              cfg.RelayAddr,
		Handler:           relay.NewRouter(caller, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.InfoObj("apirelay listening", "addr", cfg.RelayAddr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	log.InfoObj("apirelay stopped", "addr", cfg.RelayAddr)
	return nil
}
