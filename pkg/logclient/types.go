package logclient

import (
	"github.com/jonboulle/clockwork"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/auth"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/config"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging/delivery"
)

// Re-exported types so callers only import this package.
type (
	Event          = logging.Event
	Payload        = logging.Payload
	Options        = config.Options
	RetryOptions   = config.RetryOptions
	BatchOptions   = config.BatchOptions
	BatchOption    = config.BatchOption
	Duration       = config.Duration
	Config         = config.Config
	ConfigError    = config.ConfigError
	FailureInfo    = delivery.FailureInfo
	FailureHandler = delivery.FailureHandler
	Signer         = auth.Signer
	Clock          = clockwork.Clock
)

var (
	ErrMissingTags = logging.ErrMissingTags
	ErrInvalidTags = logging.ErrInvalidTags
)

// Batching helpers for Options.Batch.
var (
	BatchOn   = config.BatchOn
	BatchWith = config.BatchWith
)

// Ptr returns a pointer to v, for optional Options fields.
func Ptr[T any](v T) *T {
	return &v
}
