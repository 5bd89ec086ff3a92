package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
)

const maxEventLine = 1 << 20

type jsonLogger interface {
	LogJSON(raw []byte) error
}

// readEvents feeds each non-blank line of r to client as a JSON event until
// r is exhausted or ctx ends. Malformed lines are logged and skipped.
func readEvents(ctx context.Context, r io.Reader, client jsonLogger, logger *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := client.LogJSON(line); err != nil {
			logger.Warn("logship: skipping malformed event", "line", lineNo, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}
