package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/config"
)

type cliFlags struct {
	configPath      string
	url             string
	baseURL         string
	path            string
	batch           bool
	logLevel        string
	logFormat       string
	metricsAddr     string
	stdin           bool
	tailDir         string
	tailTags        []string
	tailWorkers     int
	fromStart       bool
	poll            bool
	scanInterval    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := pflag.NewFlagSet("logship", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", getEnv("LOGSHIP_CONFIG", ""), "YAML or JSON config file")
	fs.StringVar(&f.url, "url", getEnv("LOGSHIP_URL", ""), "full collector endpoint (overrides --base-url and --path)")
	fs.StringVar(&f.baseURL, "base-url", getEnv("LOGSHIP_BASE_URL", ""), "collector base address")
	fs.StringVar(&f.path, "path", getEnv("LOGSHIP_PATH", ""), "collector path appended to --base-url")
	fs.BoolVar(&f.batch, "batch", getEnvAsBool("LOGSHIP_BATCH", false), "batch events with default settings")
	fs.StringVar(&f.logLevel, "log-level", getEnv("LOGSHIP_LOG_LEVEL", ""), "DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&f.logFormat, "log-format", getEnv("LOGSHIP_LOG_FORMAT", "text"), "text or json")
	fs.StringVar(&f.metricsAddr, "metrics-addr", getEnv("LOGSHIP_METRICS_ADDR", ""), "serve /metrics on this address")
	fs.BoolVar(&f.stdin, "stdin", getEnvAsBool("LOGSHIP_STDIN", false), "read JSON events from standard input, one per line")
	fs.StringVar(&f.tailDir, "tail", getEnv("LOGSHIP_TAIL_DIR", ""), "follow *.log files under this directory")
	fs.StringSliceVar(&f.tailTags, "tail-tags", nil, "tags added to every tailed line")
	fs.IntVar(&f.tailWorkers, "tail-workers", getEnvAsInt("LOGSHIP_TAIL_WORKERS", 8), "files followed at once")
	fs.BoolVar(&f.fromStart, "from-start", false, "read tailed files from the beginning")
	fs.BoolVar(&f.poll, "poll", false, "poll tailed files instead of using inotify")
	fs.DurationVar(&f.scanInterval, "scan-interval", getEnvAsDuration("LOGSHIP_SCAN_INTERVAL", 30*time.Second), "how often to look for new log files")
	fs.DurationVar(&f.idleTimeout, "idle-timeout", getEnvAsDuration("LOGSHIP_IDLE_TIMEOUT", 5*time.Minute), "stop following a file after this long without lines")
	fs.DurationVar(&f.shutdownTimeout, "shutdown-timeout", 10*time.Second, "how long to wait for pending deliveries on exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if !f.stdin && f.tailDir == "" {
		return nil, fmt.Errorf("nothing to ship: use --stdin and/or --tail")
	}
	return f, nil
}

// options loads the config file, if any, and overlays explicitly given
// flags and environment values.
func (f *cliFlags) options() (config.Options, error) {
	var opts config.Options
	if f.configPath != "" {
		loaded, err := config.LoadOptions(f.configPath)
		if err != nil {
			return config.Options{}, err
		}
		opts = loaded
	}
	return f.overlay(opts), nil
}

func (f *cliFlags) overlay(opts config.Options) config.Options {
	if f.url != "" {
		opts.URL = f.url
	}
	if f.baseURL != "" {
		opts.BaseURL = f.baseURL
	}
	if f.path != "" {
		opts.Path = config.Ptr(f.path)
	}
	if f.batch {
		opts.Batch = config.BatchOn()
	}
	if f.logLevel != "" {
		opts.LogLevel = f.logLevel
	}
	return opts
}

func (f *cliFlags) resolve() (config.Config, error) {
	opts, err := f.options()
	if err != nil {
		return config.Config{}, err
	}
	return config.Validate(opts)
}

// reload resolves a changed config file the same way resolve did at startup.
func (f *cliFlags) reload(opts config.Options) (config.Config, error) {
	return config.Validate(f.overlay(opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
