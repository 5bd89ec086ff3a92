package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
)

var (
	ErrQueueFull = errors.New("delivery queue full")
	ErrStopped   = errors.New("delivery client stopped")
)

// Error describes a delivery that did not reach a 2xx response. StatusCode
// is zero when no response was received.
type Error struct {
	StatusCode int
	StatusText string
	Body       []byte
	Attempts   int
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("collector returned status %d %s after %d attempt(s)", e.StatusCode, e.StatusText, e.Attempts)
	}
	return fmt.Sprintf("delivery failed after %d attempt(s): %s", e.Attempts, e.StatusText)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) temporary() bool {
	switch {
	case e.StatusCode == 0:
		return e.Err != nil && !errors.Is(e.Err, errSign)
	case e.StatusCode >= 500,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// FailureInfo is handed to the FailureHandler when a payload could not be
// delivered.
type FailureInfo struct {
	StatusCode int
	StatusText string

	// Entity is the response body, decoded as JSON when it parses and as a
	// string otherwise. Nil when no response was received.
	Entity any

	Payload   logging.Payload
	Attempts  int
	RequestID string
	Err       error
}

// FailureHandler receives delivery failures. It runs on a delivery
// goroutine, never on the caller of Log.
type FailureHandler func(info FailureInfo)

func failureFrom(err error, payload logging.Payload) FailureInfo {
	info := FailureInfo{Payload: payload, Err: err}

	var derr *Error
	if !errors.As(err, &derr) {
		info.StatusText = err.Error()
		return info
	}

	info.StatusCode = derr.StatusCode
	info.StatusText = derr.StatusText
	info.Attempts = derr.Attempts
	info.RequestID = derr.RequestID
	info.Err = derr.Err
	if len(derr.Body) > 0 {
		var entity any
		if json.Unmarshal(derr.Body, &entity) == nil {
			info.Entity = entity
		} else {
			info.Entity = string(derr.Body)
		}
	}
	return info
}
