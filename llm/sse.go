package llm

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// maxLineSize bounds one upstream event line
const maxLineSize = 1 << 20

// ScanEvents reads a provider's "data: " line envelope and calls fn with each
// payload, stopping at EOF or at the "[DONE]" sentinel. Comment lines, event
// names and blank separators are skipped.
func ScanEvents(ctx context.Context, r io.Reader, fn func(payload string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			return nil
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
