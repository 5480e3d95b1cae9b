package streamclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"analyze-service/models"
)

// ErrUnterminated is returned when a stream ends without a terminal frame
var ErrUnterminated = errors.New("stream ended without a terminal frame")

const maxFrameSize = 1024 * 1024

// Decoder splits a relay stream into StreamEvents
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Decoder{scanner: s}
}

// Next returns the next event. After the [DONE] line it returns io.EOF.
// A body that ends before [DONE] yields ErrUnterminated.
func (d *Decoder) Next() (models.StreamEvent, error) {
	if d.done {
		return models.StreamEvent{}, io.EOF
	}
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if payload == models.StreamTerminator {
			d.done = true
			return models.Done(), nil
		}

		var frame models.Frame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			return models.StreamEvent{}, fmt.Errorf("malformed frame %q: %w", payload, err)
		}
		return frame.Event(), nil
	}
	if err := d.scanner.Err(); err != nil {
		return models.StreamEvent{}, err
	}
	return models.StreamEvent{}, ErrUnterminated
}
