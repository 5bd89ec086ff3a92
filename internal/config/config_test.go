package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configError(t *testing.T, err error) *ConfigError {
	t.Helper()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %T: %v", err, err)
	return cfgErr
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidate_Defaults(t *testing.T) {
	cfg, err := Validate(Options{BaseURL: "http://localhost:8000"})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000"+DefaultPath, cfg.Endpoint)
	assert.Equal(t, DefaultRetryInitial, cfg.Retry.Initial)
	assert.Equal(t, DefaultRetryMultiplier, cfg.Retry.Multiplier)
	assert.Equal(t, DefaultRetryMax, cfg.Retry.Max)
	assert.Equal(t, DefaultRetryAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Nil(t, cfg.Batch)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, EncodingJSON, cfg.Encoding)
	assert.Equal(t, CompressionNone, cfg.Compression)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
}

func TestValidate_MissingEndpoint(t *testing.T) {
	_, err := Validate(Options{Batch: BatchOn()})
	require.Error(t, err)

	cfgErr := configError(t, err)
	assert.Equal(t, "baseUrl", cfgErr.Field)
	assert.Contains(t, err.Error(), "baseUrl is required")
}

func TestValidate_Endpoint(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want string
	}{
		{"full url wins", Options{URL: "http://collector:9000/log", BaseURL: "http://ignored"}, "http://collector:9000/log"},
		{"base and path", Options{BaseURL: "https://collector/", Path: Ptr("/ingest")}, "https://collector/ingest"},
		{"path without slash", Options{BaseURL: "http://collector", Path: Ptr("ingest")}, "http://collector/ingest"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Validate(tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Endpoint)
		})
	}
}

func TestValidate_InvalidEndpoint(t *testing.T) {
	_, err := Validate(Options{BaseURL: "localhost:8000"})
	assert.Equal(t, "baseUrl", configError(t, err).Field)

	_, err = Validate(Options{URL: "ftp://collector/log"})
	assert.Equal(t, "url", configError(t, err).Field)

	_, err = Validate(Options{BaseURL: "http://collector", Path: Ptr("  ")})
	assert.Equal(t, "path", configError(t, err).Field)
}

func TestValidate_NumericFields(t *testing.T) {
	base := "http://localhost:8000"
	cases := []struct {
		field string
		opts  Options
	}{
		{"retry.initial", Options{BaseURL: base, Retry: &RetryOptions{Initial: Ptr(Duration(0))}}},
		{"retry.multiplier", Options{BaseURL: base, Retry: &RetryOptions{Multiplier: Ptr(-2.0)}}},
		{"retry.max", Options{BaseURL: base, Retry: &RetryOptions{Max: Ptr(Duration(-time.Second))}}},
		{"retry.maxAttempts", Options{BaseURL: base, Retry: &RetryOptions{MaxAttempts: Ptr(0)}}},
		{"batch.size", Options{BaseURL: base, Batch: BatchWith(BatchOptions{Size: Ptr(0)})}},
		{"batch.interval", Options{BaseURL: base, Batch: BatchWith(BatchOptions{Interval: Ptr(Duration(-1))})}},
		{"workers", Options{BaseURL: base, Workers: Ptr(0)}},
		{"queueSize", Options{BaseURL: base, QueueSize: Ptr(-5)}},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			_, err := Validate(tc.opts)
			require.Error(t, err)
			assert.Equal(t, tc.field, configError(t, err).Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestValidate_NonPositiveTimeoutDisables(t *testing.T) {
	cfg, err := Validate(Options{BaseURL: "http://localhost:8000", Timeout: Ptr(Duration(-1))})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), cfg.Timeout)
}

func TestValidate_BatchTrueAppliesDefaults(t *testing.T) {
	cfg, err := Validate(Options{BaseURL: "http://localhost:8000", Batch: BatchOn()})
	require.NoError(t, err)
	require.NotNil(t, cfg.Batch)

	assert.Equal(t, DefaultBatchSize, cfg.Batch.Size)
	assert.Equal(t, DefaultBatchInterval, cfg.Batch.Interval)
	assert.ElementsMatch(t, []string{"warn", "error"}, cfg.Batch.ReleaseTags)
}

func TestValidate_BatchFalseDisables(t *testing.T) {
	cfg, err := Validate(Options{BaseURL: "http://localhost:8000", Batch: &BatchOption{}})
	require.NoError(t, err)
	assert.Nil(t, cfg.Batch)
}

func TestValidate_BatchObjectMergesOverDefaults(t *testing.T) {
	cfg, err := Validate(Options{
		BaseURL: "http://localhost:8000",
		Batch:   BatchWith(BatchOptions{Size: Ptr(3)}),
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.Batch)

	assert.Equal(t, 3, cfg.Batch.Size)
	assert.Equal(t, DefaultBatchInterval, cfg.Batch.Interval)
	assert.ElementsMatch(t, DefaultReleaseTags(), cfg.Batch.ReleaseTags)
}

func TestValidate_LogLevelEncodingCompression(t *testing.T) {
	cfg, err := Validate(Options{
		BaseURL:     "http://localhost:8000",
		LogLevel:    "debug",
		Encoding:    "CBOR",
		Compression: "gzip",
	})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, EncodingCBOR, cfg.Encoding)
	assert.Equal(t, CompressionGzip, cfg.Compression)

	_, err = Validate(Options{BaseURL: "http://localhost:8000", LogLevel: "loud"})
	assert.Equal(t, "logLevel", configError(t, err).Field)

	_, err = Validate(Options{BaseURL: "http://localhost:8000", Encoding: "xml"})
	assert.Equal(t, "encoding", configError(t, err).Field)

	_, err = Validate(Options{BaseURL: "http://localhost:8000", Compression: "brotli"})
	assert.Equal(t, "compression", configError(t, err).Field)
}

func TestValidate_AuthPassedThrough(t *testing.T) {
	auth := map[string]any{"hawk": map[string]any{"credentials": map[string]any{"id": "abc"}}}
	cfg, err := Validate(Options{BaseURL: "http://localhost:8000", Auth: auth})
	require.NoError(t, err)
	assert.Equal(t, auth, cfg.Auth)
}

func TestParse_YAML(t *testing.T) {
	opts, err := Parse([]byte(`
baseUrl: http://localhost:8000
path: /log
timeout: 2m
retry:
  initial: 250
  multiplier: 3
  max: 10s
batch:
  size: 5
  interval: 1500
  releaseTags: [error]
logLevel: INFO
auth:
  hawk:
    credentials:
      id: dh37fgj492je
      key: werxhqb98rpaxn39848xrunpaw3489ruxnpa98w4rxn
      algorithm: sha256
`), FormatYAML)
	require.NoError(t, err)

	cfg, err := Validate(opts)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/log", cfg.Endpoint)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Initial)
	assert.Equal(t, 3.0, cfg.Retry.Multiplier)
	assert.Equal(t, 10*time.Second, cfg.Retry.Max)
	require.NotNil(t, cfg.Batch)
	assert.Equal(t, 5, cfg.Batch.Size)
	assert.Equal(t, 1500*time.Millisecond, cfg.Batch.Interval)
	assert.Equal(t, []string{"error"}, cfg.Batch.ReleaseTags)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Contains(t, cfg.Auth, "hawk")
}

func TestParse_JSONWithComments(t *testing.T) {
	opts, err := Parse([]byte(`{
		// collector
		"url": "http://localhost:8000/log",
		"batch": true,
		"timeout": "5s",
	}`), FormatJSON)
	require.NoError(t, err)

	cfg, err := Validate(opts)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/log", cfg.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	require.NotNil(t, cfg.Batch)
	assert.Equal(t, DefaultBatchSize, cfg.Batch.Size)
}

func TestParse_InvalidBatchShape(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml string", "baseUrl: http://x\nbatch: sometimes\n", FormatYAML},
		{"yaml number", "baseUrl: http://x\nbatch: 5\n", FormatYAML},
		{"yaml list", "baseUrl: http://x\nbatch: [1, 2]\n", FormatYAML},
		{"json string", `{"baseUrl":"http://x","batch":"yes"}`, FormatJSON},
		{"json array", `{"baseUrl":"http://x","batch":[]}`, FormatJSON},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), tc.format)
			require.Error(t, err)
			assert.Equal(t, "batch", configError(t, err).Field)
		})
	}
}

func TestParse_BatchFalse(t *testing.T) {
	opts, err := Parse([]byte("baseUrl: http://x\nbatch: false\n"), FormatYAML)
	require.NoError(t, err)

	cfg, err := Validate(opts)
	require.NoError(t, err)
	assert.Nil(t, cfg.Batch)
}

func TestParse_WrongTypes(t *testing.T) {
	_, err := Parse([]byte("baseUrl: http://x\nretry:\n  multiplier: fast\n"), FormatYAML)
	assert.Error(t, err)
	configError(t, err)

	_, err = Parse([]byte(`{"baseUrl":"http://x","timeout":true}`), FormatJSON)
	assert.Error(t, err)

	_, err = Parse([]byte(`{"baseUrl":"http://x","batch":{"size":"ten"}}`), FormatJSON)
	assert.Equal(t, "batch", configError(t, err).Field)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "logship.yaml", "baseUrl: http://localhost:8000\nbatch: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000"+DefaultPath, cfg.Endpoint)
	assert.NotNil(t, cfg.Batch)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	configError(t, err)

	_, err = Load(writeFile(t, "logship.toml", "baseUrl = 'x'"))
	configError(t, err)

	_, err = Load(writeFile(t, "logship.json", `{"batch": true}`))
	assert.Equal(t, "baseUrl", configError(t, err).Field)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "logship.yaml", "baseUrl: http://localhost:8000\nlogLevel: WARN\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var levels []slog.Level
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg Config) {
			mu.Lock()
			defer mu.Unlock()
			levels = append(levels, cfg.LogLevel)
		})
	}()

	n := 0
	assert.Eventually(t, func() bool {
		n++
		_ = os.WriteFile(path, []byte(fmt.Sprintf("baseUrl: http://localhost:8000\nlogLevel: DEBUG # %d\n", n)), 0644)
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == slog.LevelDebug
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_ResolverSeesFileOptions(t *testing.T) {
	path := writeFile(t, "logship.yaml", "logLevel: WARN\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	overlay := func(opts Options) (Config, error) {
		opts.BaseURL = "http://from-flag:8000"
		return Validate(opts)
	}

	reloaded := make(chan Config, 16)
	go func() {
		_ = Watch(ctx, path, overlay, func(cfg Config) { reloaded <- cfg })
	}()

	var cfg Config
	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = os.WriteFile(path, []byte(fmt.Sprintf("# save %d\nlogLevel: DEBUG\n", n)), 0644)
		select {
		case cfg = <-reloaded:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "http://from-flag:8000"+DefaultPath, cfg.Endpoint)
}

func TestWatch_SkipsInvalidFiles(t *testing.T) {
	path := writeFile(t, "logship.yaml", "baseUrl: http://localhost:8000\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 16)
	go func() {
		_ = Watch(ctx, path, nil, func(cfg Config) { reloaded <- cfg })
	}()

	// missing baseUrl never validates
	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte(fmt.Sprintf("logLevel: DEBUG # %d\n", i)), 0644)
		time.Sleep(20 * time.Millisecond)
	}
	assert.Never(t, func() bool { return len(reloaded) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWatch_RejectsUnknownExtension(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "logship.toml"), nil, func(Config) {})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
