package logclient

import (
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"
)

type settings struct {
	onFailure  FailureHandler
	signer     Signer
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// Option adjusts how a Client is built.
type Option func(*settings)

// WithFailureHandler registers a handler for payloads that could not be
// delivered. It is called on a delivery goroutine and may call Log.
func WithFailureHandler(h FailureHandler) Option {
	return func(s *settings) {
		s.onFailure = h
	}
}

// WithSigner overrides the signer built from the auth options.
func WithSigner(signer Signer) Option {
	return func(s *settings) {
		s.signer = signer
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.httpClient = hc
	}
}

func WithClock(clk clockwork.Clock) Option {
	return func(s *settings) {
		s.clock = clk
	}
}

// WithLogger replaces the stderr logger built from the logLevel option.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}
