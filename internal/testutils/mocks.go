package testutils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
)

type MockDeliverer struct {
	Payloads []logging.Payload
	mu       sync.Mutex
}

func (m *MockDeliverer) Deliver(payload logging.Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payloads = append(m.Payloads, payload)
}

func (m *MockDeliverer) GetPayloads() []logging.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]logging.Payload, len(m.Payloads))
	copy(out, m.Payloads)
	return out
}

// EventCount returns the number of events across all delivered payloads.
func (m *MockDeliverer) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, p := range m.Payloads {
		total += p.Len()
	}
	return total
}

type MockLogger struct {
	Events   []logging.Event
	mu       sync.Mutex
	LogCalls int
}

func (m *MockLogger) Log(event logging.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	m.LogCalls++
}

func (m *MockLogger) GetEvents() []logging.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]logging.Event, len(m.Events))
	copy(out, m.Events)
	return out
}

func CreateTempLogStructure(t *testing.T) string {
	tempDir := t.TempDir()

	structure := map[string]string{
		"api/access.log":        "GET /health 200\nGET /users 200\n",
		"api/error.log":         "ERROR db connection refused\n",
		"worker/jobs/queue.log": "INFO job 1 done\nWARN job 2 slow\n",
		"worker/jobs/notes.txt": "not a log file\n",
	}

	for path, content := range structure {
		fullPath := filepath.Join(tempDir, path)
		dir := filepath.Dir(fullPath)

		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}

		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", fullPath, err)
		}
	}

	return tempDir
}
