package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging/retry"
)

// Defaults applied to fields absent from Options.
const (
	DefaultPath            = "/api/runrightfast-logging-service/log"
	DefaultRetryInitial    = 100 * time.Millisecond
	DefaultRetryMultiplier = 2.0
	DefaultRetryMax        = time.Hour
	DefaultRetryAttempts   = 5
	DefaultBatchSize       = 10
	DefaultBatchInterval   = 30 * time.Second
	DefaultWorkers         = 2
	DefaultQueueSize       = 100
	DefaultLogLevel        = slog.LevelWarn
	DefaultEncoding        = EncodingJSON
	DefaultCompression     = CompressionNone
)

// DefaultReleaseTags returns the tags that release a pending batch
// immediately when no releaseTags are configured.
func DefaultReleaseTags() []string {
	return []string{"warn", "error"}
}

// Body encodings understood by the delivery client.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// Body compressions understood by the delivery client.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// Options is the caller-supplied, partially specified configuration. A nil
// pointer means the field was not given and its default applies.
type Options struct {
	// URL is a fully-qualified collector endpoint. When set, BaseURL and
	// Path are ignored.
	URL string `yaml:"url" json:"url"`

	// BaseURL is the collector address Path is appended to.
	BaseURL string  `yaml:"baseUrl" json:"baseUrl"`
	Path    *string `yaml:"path" json:"path"`

	Retry *RetryOptions `yaml:"retry" json:"retry"`

	// Timeout bounds a single delivery attempt. Non-positive disables it.
	Timeout *Duration `yaml:"timeout" json:"timeout"`

	// Batch is true, false, or an object of BatchOptions.
	Batch *BatchOption `yaml:"batch" json:"batch"`

	LogLevel string `yaml:"logLevel" json:"logLevel"`

	// Auth is handed untouched to the request signer.
	Auth map[string]any `yaml:"auth" json:"auth"`

	Encoding    string `yaml:"encoding" json:"encoding"`
	Compression string `yaml:"compression" json:"compression"`

	// Workers is the number of concurrent delivery goroutines.
	Workers *int `yaml:"workers" json:"workers"`

	// QueueSize bounds payloads waiting for a delivery worker.
	QueueSize *int `yaml:"queueSize" json:"queueSize"`
}

type RetryOptions struct {
	Initial     *Duration `yaml:"initial" json:"initial"`
	Multiplier  *float64  `yaml:"multiplier" json:"multiplier"`
	Max         *Duration `yaml:"max" json:"max"`
	MaxAttempts *int      `yaml:"maxAttempts" json:"maxAttempts"`
}

type BatchOptions struct {
	Size        *int      `yaml:"size" json:"size"`
	Interval    *Duration `yaml:"interval" json:"interval"`
	ReleaseTags []string  `yaml:"releaseTags" json:"releaseTags"`
}

// Config is a fully populated, validated configuration.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Retry    retry.Policy

	// Batch is nil when events are delivered one at a time.
	Batch *BatchConfig

	LogLevel    slog.Level
	Auth        map[string]any
	Encoding    string
	Compression string
	Workers     int
	QueueSize   int
}

type BatchConfig struct {
	Size        int
	Interval    time.Duration
	ReleaseTags []string
}

// ConfigError reports invalid configuration. Field is the dotted option
// name when the problem is tied to one option.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "config: "
	if e.Field != "" {
		msg += e.Field + " "
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func fieldError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// Ptr returns a pointer to v, for filling optional Options fields.
func Ptr[T any](v T) *T {
	return &v
}

// Validate applies defaults to opts and checks every field. It is the only
// place a misconfiguration surfaces as an error.
func Validate(opts Options) (Config, error) {
	cfg := Config{
		Retry: retry.Policy{
			Initial:     DefaultRetryInitial,
			Multiplier:  DefaultRetryMultiplier,
			Max:         DefaultRetryMax,
			MaxAttempts: DefaultRetryAttempts,
		},
		LogLevel:    DefaultLogLevel,
		Auth:        opts.Auth,
		Encoding:    DefaultEncoding,
		Compression: DefaultCompression,
		Workers:     DefaultWorkers,
		QueueSize:   DefaultQueueSize,
	}

	endpoint, err := endpointOf(opts)
	if err != nil {
		return Config{}, err
	}
	cfg.Endpoint = endpoint

	if r := opts.Retry; r != nil {
		if r.Initial != nil {
			if *r.Initial <= 0 {
				return Config{}, fieldError("retry.initial", "must be > 0")
			}
			cfg.Retry.Initial = r.Initial.Std()
		}
		if r.Multiplier != nil {
			if !(*r.Multiplier > 0) {
				return Config{}, fieldError("retry.multiplier", "must be > 0")
			}
			cfg.Retry.Multiplier = *r.Multiplier
		}
		if r.Max != nil {
			if *r.Max <= 0 {
				return Config{}, fieldError("retry.max", "must be > 0")
			}
			cfg.Retry.Max = r.Max.Std()
		}
		if r.MaxAttempts != nil {
			if *r.MaxAttempts <= 0 {
				return Config{}, fieldError("retry.maxAttempts", "must be > 0")
			}
			cfg.Retry.MaxAttempts = *r.MaxAttempts
		}
	}

	if opts.Timeout != nil {
		cfg.Timeout = opts.Timeout.Std()
	}

	if opts.Batch != nil {
		batch, err := batchOf(*opts.Batch)
		if err != nil {
			return Config{}, err
		}
		cfg.Batch = batch
	}

	if opts.LogLevel != "" {
		level, err := ParseLevel(opts.LogLevel)
		if err != nil {
			return Config{}, &ConfigError{Field: "logLevel", Reason: "is invalid", Err: err}
		}
		cfg.LogLevel = level
	}

	switch enc := strings.ToLower(opts.Encoding); enc {
	case "":
	case EncodingJSON, EncodingCBOR:
		cfg.Encoding = enc
	default:
		return Config{}, fieldError("encoding", fmt.Sprintf("must be %q or %q, got %q", EncodingJSON, EncodingCBOR, opts.Encoding))
	}

	switch comp := strings.ToLower(opts.Compression); comp {
	case "":
	case CompressionNone, CompressionGzip, CompressionZstd:
		cfg.Compression = comp
	default:
		return Config{}, fieldError("compression", fmt.Sprintf("must be one of none, gzip, zstd, got %q", opts.Compression))
	}

	if opts.Workers != nil {
		if *opts.Workers <= 0 {
			return Config{}, fieldError("workers", "must be > 0")
		}
		cfg.Workers = *opts.Workers
	}
	if opts.QueueSize != nil {
		if *opts.QueueSize <= 0 {
			return Config{}, fieldError("queueSize", "must be > 0")
		}
		cfg.QueueSize = *opts.QueueSize
	}

	return cfg, nil
}

func endpointOf(opts Options) (string, error) {
	if opts.URL != "" {
		if err := checkAbsolute(opts.URL); err != nil {
			return "", &ConfigError{Field: "url", Reason: "is invalid", Err: err}
		}
		return opts.URL, nil
	}

	if strings.TrimSpace(opts.BaseURL) == "" {
		return "", fieldError("baseUrl", "is required")
	}
	if err := checkAbsolute(opts.BaseURL); err != nil {
		return "", &ConfigError{Field: "baseUrl", Reason: "is invalid", Err: err}
	}

	path := DefaultPath
	if opts.Path != nil {
		path = strings.TrimSpace(*opts.Path)
		if path == "" {
			return "", fieldError("path", "must be a non-empty string")
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}

	return strings.TrimRight(opts.BaseURL, "/") + path, nil
}

func checkAbsolute(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func batchOf(opt BatchOption) (*BatchConfig, error) {
	if !opt.Enabled && opt.Settings == nil {
		return nil, nil
	}

	batch := &BatchConfig{
		Size:        DefaultBatchSize,
		Interval:    DefaultBatchInterval,
		ReleaseTags: DefaultReleaseTags(),
	}
	if opt.Settings == nil {
		return batch, nil
	}

	s := opt.Settings
	if s.Size != nil {
		if *s.Size <= 0 {
			return nil, fieldError("batch.size", "must be a number > 0")
		}
		batch.Size = *s.Size
	}
	if s.Interval != nil {
		if *s.Interval <= 0 {
			return nil, fieldError("batch.interval", "must be a duration > 0")
		}
		batch.Interval = s.Interval.Std()
	}
	if s.ReleaseTags != nil {
		batch.ReleaseTags = append([]string{}, s.ReleaseTags...)
	}
	return batch, nil
}
