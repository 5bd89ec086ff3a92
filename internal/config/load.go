package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format names a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the syntax from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

// Parse decodes raw options without applying defaults or validation. JSON
// input may carry comments and trailing commas.
func Parse(data []byte, format Format) (Options, error) {
	var opts Options
	var err error

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &opts)
	case FormatJSON:
		err = json.Unmarshal(jsonc.ToJSON(data), &opts)
	default:
		return Options{}, &ConfigError{Reason: fmt.Sprintf("unknown format %q", format)}
	}
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return Options{}, cfgErr
		}
		return Options{}, &ConfigError{Reason: "parse " + string(format), Err: err}
	}
	return opts, nil
}

// Load reads the config file at path, then parses and validates it.
func Load(path string) (Config, error) {
	opts, err := LoadOptions(path)
	if err != nil {
		return Config{}, err
	}
	return Validate(opts)
}

// LoadOptions reads and parses the config file at path without validating
// it, so callers can overlay flags before Validate.
func LoadOptions(path string) (Options, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Options{}, &ConfigError{Reason: "read file", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, &ConfigError{Reason: "read file", Err: err}
	}

	return Parse(data, format)
}

// ParseLevel converts a logLevel option to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
