// logship ships log events to a collecting HTTP service.
//
// Events come from two sources, which may be combined:
//
// Standard input (--stdin): one JSON event per line, each an object with a
// "tags" array and optional "data".
//
// Tailed files (--tail DIR): every *.log file under DIR is followed and
// each new line becomes an event tagged with its detected level.
//
// Settings come from an optional YAML or JSON config file (--config),
// overlaid by flags and LOGSHIP_* environment variables. When a config
// file is given its logLevel is reloaded on change.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/config"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/daemon"
	"github.com/runrightfast-archived/runrightfast-logging-client/pkg/logclient"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := flags.resolve()
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel)
	logger := newLogger(flags.logFormat, level)
	slog.SetDefault(logger)

	client, err := logclient.NewFromConfig(cfg,
		logclient.WithLogger(logger),
		logclient.WithFailureHandler(func(info logclient.FailureInfo) {
			logger.Warn("logship: events not delivered",
				"events", info.Payload.Len(), "statusCode", info.StatusCode, "statusText", info.StatusText)
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.configPath != "" {
		go func() {
			err := config.Watch(ctx, flags.configPath, flags.reload, func(updated config.Config) {
				level.Set(updated.LogLevel)
				logger.Info("logship: log level reloaded", "level", updated.LogLevel)
			})
			if err != nil {
				logger.Warn("logship: config watch stopped", "error", err)
			}
		}()
	}

	var metricsServer *http.Server
	if flags.metricsAddr != "" {
		metricsServer = startMetricsServer(flags.metricsAddr, client, logger)
	}

	var tailer *daemon.TailService
	if flags.tailDir != "" {
		tailer = daemon.NewTailService(ctx, daemon.Config{
			LogRootPath:     flags.tailDir,
			ScanInterval:    flags.scanInterval,
			Workers:         flags.tailWorkers,
			FileQueueSize:   flags.tailWorkers * 4,
			Tags:            flags.tailTags,
			FromStart:       flags.fromStart,
			Poll:            flags.poll,
			FileIdleTimeout: flags.idleTimeout,
		}, client, logger)
		tailer.Start()
	}

	stdinDone := make(chan struct{})
	if flags.stdin {
		go func() {
			defer close(stdinDone)
			if err := readEvents(ctx, os.Stdin, client, logger); err != nil {
				logger.Error("logship: reading stdin", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("logship: received shutdown signal")
	case <-stdinDone:
		if tailer != nil {
			<-ctx.Done()
		}
	}

	if tailer != nil {
		tailer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), flags.shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := client.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("pending events not delivered before shutdown: %w", err)
	}

	logger.Info("logship: stopped",
		"events", client.EventCount(), "invalidEvents", client.InvalidEventCount())
	return nil
}

func newLogger(format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func startMetricsServer(addr string, client *logclient.Client, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := client.WriteMetrics(w); err != nil {
			logger.Warn("logship: writing metrics", "error", err)
		}
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("logship: serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("logship: metrics server", "error", err)
		}
	}()
	return srv
}
