package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"analyze-service/models"
)

// Stream response headers
const (
	StreamContentType = "text/plain; charset=utf-8"
)

// HTTPStream writes StreamEvents as "data: <json>\n\n" frames and flushes
// after every frame. After the terminal event it writes the [DONE] line and
// refuses further events.
type HTTPStream struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	mu        sync.Mutex
	committed bool
	closed    bool
}

func NewHTTPStream(w http.ResponseWriter) *HTTPStream {
	return &HTTPStream{w: w, rc: http.NewResponseController(w)}
}

// Commit sends the status line and stream headers. Once committed, failures
// can only be reported as error frames.
func (s *HTTPStream) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

func (s *HTTPStream) commitLocked() error {
	if s.committed {
		return nil
	}
	s.committed = true

	h := s.w.Header()
	h.Set("Content-Type", StreamContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.rc.Flush()
}

func (s *HTTPStream) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

func (s *HTTPStream) Send(ev models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if err := s.commitLocked(); err != nil {
		s.closed = true
		return err
	}

	if frame, ok := ev.Frame(); ok {
		if err := s.writeLocked(frame); err != nil {
			s.closed = true
			return err
		}
	}
	if ev.IsTerminal() {
		s.closed = true
		if _, err := fmt.Fprintf(s.w, "data: %s\n\n", models.StreamTerminator); err != nil {
			return err
		}
	}
	return s.rc.Flush()
}

func (s *HTTPStream) writeLocked(frame models.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "data: %s\n\n", data)
	return err
}
