package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts either a bare number of milliseconds or a Go duration
// string ("250ms", "30s") in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func parseDuration(text string, numeric bool) (Duration, error) {
	if numeric {
		ms, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", text, err)
		}
		return Duration(ms * float64(time.Millisecond)), nil
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", text, err)
	}
	return Duration(parsed), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a number of milliseconds or a duration string", node.Line)
	}
	var numeric bool
	switch node.Tag {
	case "!!int", "!!float":
		numeric = true
	case "!!str":
	default:
		return fmt.Errorf("line %d: duration must be a number of milliseconds or a duration string, got %s", node.Line, node.Tag)
	}
	parsed, err := parseDuration(node.Value, numeric)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		parsed, err := parseDuration(text, false)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a number of milliseconds or a duration string, got %s", data)
	}
	parsed, err := parseDuration(n.String(), true)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// BatchOption is the batch setting: a boolean switch or an object whose
// fields are merged over the batch defaults.
type BatchOption struct {
	Enabled  bool
	Settings *BatchOptions
}

// BatchOn enables batching with all defaults.
func BatchOn() *BatchOption {
	return &BatchOption{Enabled: true}
}

// BatchWith enables batching with settings merged over the defaults.
func BatchWith(settings BatchOptions) *BatchOption {
	return &BatchOption{Enabled: true, Settings: &settings}
}

func batchShapeError() error {
	return fieldError("batch", "is invalid - it must either be a boolean or an object")
}

func (b *BatchOption) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			*b = BatchOption{}
			return nil
		case "!!bool":
			var enabled bool
			if err := node.Decode(&enabled); err != nil {
				return err
			}
			*b = BatchOption{Enabled: enabled}
			return nil
		}
	case yaml.MappingNode:
		var settings BatchOptions
		if err := node.Decode(&settings); err != nil {
			return &ConfigError{Field: "batch", Reason: "is invalid", Err: err}
		}
		*b = BatchOption{Enabled: true, Settings: &settings}
		return nil
	}
	return batchShapeError()
}

func (b *BatchOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = BatchOption{}
		return nil
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*b = BatchOption{Enabled: data[0] == 't'}
		return nil
	case len(data) > 0 && data[0] == '{':
		var settings BatchOptions
		if err := json.Unmarshal(data, &settings); err != nil {
			return &ConfigError{Field: "batch", Reason: "is invalid", Err: err}
		}
		*b = BatchOption{Enabled: true, Settings: &settings}
		return nil
	}
	return batchShapeError()
}
