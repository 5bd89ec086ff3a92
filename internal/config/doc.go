// Package config turns caller-supplied shipping options into a validated
// Config.
//
// Options is the raw, partially specified record: pointer fields mark
// whether an option was given at all, so an explicit zero can be rejected
// instead of silently defaulted. Validate fills defaults (retry 100ms x2 up
// to 1h over 5 attempts, batch size 10 every 30s released early by "warn"
// or "error", log level WARN) and returns a *ConfigError naming the first
// offending field.
//
// Options can also come from a file. Load picks YAML for .yaml/.yml and
// JSON-with-comments for .json/.jsonc. Durations in files are either a
// number of milliseconds or a Go duration string. The batch option accepts
// true, false, or an object; anything else is a ConfigError on "batch".
//
// Watch re-reads the file on change so long-running processes can pick up a
// new log level without restarting.
package config
