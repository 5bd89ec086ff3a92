package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/config"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLogger) LogJSON(raw []byte) error {
	if _, err := logging.ParseEvent(raw); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, string(raw))
	return nil
}

func TestReadEvents(t *testing.T) {
	input := strings.Join([]string{
		`{"tags":["info"],"data":"one"}`,
		``,
		`   `,
		`{"data":"no tags"}`,
		`not json`,
		`{"tags":["error"],"data":{"code":7}}`,
	}, "\n")

	rec := &recordingLogger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, readEvents(context.Background(), strings.NewReader(input), rec, logger))

	assert.Equal(t, []string{
		`{"tags":["info"],"data":"one"}`,
		`{"tags":["error"],"data":{"code":7}}`,
	}, rec.lines)
}

func TestReadEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recordingLogger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, readEvents(ctx, strings.NewReader(`{"tags":[]}`+"\n"), rec, logger))
	assert.Empty(t, rec.lines)
}

func TestParseFlags_RequiresASource(t *testing.T) {
	_, err := parseFlags([]string{"--url", "http://collector/log"})
	assert.ErrorContains(t, err, "nothing to ship")

	_, err = parseFlags([]string{"--stdin", "extra"})
	assert.ErrorContains(t, err, "unexpected argument")
}

func TestParseFlags_EnvDefaults(t *testing.T) {
	t.Setenv("LOGSHIP_BASE_URL", "http://collector:8000")
	t.Setenv("LOGSHIP_STDIN", "true")
	t.Setenv("LOGSHIP_SCAN_INTERVAL", "5s")

	flags, err := parseFlags(nil)
	require.NoError(t, err)
	assert.True(t, flags.stdin)
	assert.Equal(t, 5*time.Second, flags.scanInterval)

	cfg, err := flags.resolve()
	require.NoError(t, err)
	assert.Equal(t, "http://collector:8000"+config.DefaultPath, cfg.Endpoint)
}

func TestResolve_FlagsOverlayConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logship.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
baseUrl: http://from-file:8000
logLevel: ERROR
batch:
  size: 50
`), 0644))

	flags, err := parseFlags([]string{"--config", path, "--stdin", "--log-level", "debug", "--path", "/ingest"})
	require.NoError(t, err)

	cfg, err := flags.resolve()
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8000/ingest", cfg.Endpoint)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.NotNil(t, cfg.Batch)
	assert.Equal(t, 50, cfg.Batch.Size)
}

func TestResolve_InvalidConfigIsReported(t *testing.T) {
	flags, err := parseFlags([]string{"--stdin"})
	require.NoError(t, err)

	_, err = flags.resolve()
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "baseUrl", cfgErr.Field)
}

func TestReload_KeepsEndpointFromFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logship.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: WARN\n"), 0644))

	flags, err := parseFlags([]string{"--stdin", "--config", path, "--base-url", "http://collector:8000"})
	require.NoError(t, err)
	cfg, err := flags.resolve()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan config.Config, 16)
	go func() {
		_ = config.Watch(ctx, path, flags.reload, func(updated config.Config) { reloaded <- updated })
	}()

	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = os.WriteFile(path, []byte(fmt.Sprintf("# edit %d\nlogLevel: DEBUG\n", n)), 0644)
		select {
		case cfg = <-reloaded:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "http://collector:8000"+config.DefaultPath, cfg.Endpoint)
}

func TestReload_FlagLevelWinsOverFile(t *testing.T) {
	flags, err := parseFlags([]string{"--stdin", "--url", "http://collector/log", "--log-level", "error"})
	require.NoError(t, err)

	cfg, err := flags.reload(config.Options{LogLevel: "DEBUG"})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, cfg.LogLevel)
	assert.Equal(t, "http://collector/log", cfg.Endpoint)
}
