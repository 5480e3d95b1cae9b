package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"analyze-service/metrics"
	"analyze-service/middleware"
	"analyze-service/models"
	"analyze-service/relay"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	firstReadWait  = 30 * time.Second
	maxRequestSize = 256 * 1024
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsStream sends StreamEvents as websocket text messages: one JSON frame per
// event, then the [DONE] terminator after the terminal event.
type wsStream struct {
	mu     sync.Mutex
	conn   *gorilla.Conn
	closed bool
}

func (s *wsStream) Send(ev models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return relay.ErrStreamClosed
	}
	if frame, ok := ev.Frame(); ok {
		data, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		if err := s.write(data); err != nil {
			s.closed = true
			return err
		}
	}
	if ev.IsTerminal() {
		s.closed = true
		return s.write([]byte(models.StreamTerminator))
	}
	return nil
}

func (s *wsStream) write(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(gorilla.TextMessage, data)
}

// reject ends a websocket exchange before any upstream call
func reject(logger log.Interface, sink relay.EventSink, message string) error {
	err := sink.Send(models.Failure(message))
	if err != nil {
		logger.Debugf("analyze.ws.reject_failed: %v", err)
	}
	return err
}

// AnalyzeWebSocket reads one PromptRequest message and streams the answer
// over the socket. It always streams, whatever the configured relay mode.
func (h *AnalyzeHandler) AnalyzeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	start := time.Now()
	requestID := middleware.GetRequestID(c)
	provider := h.relay.Provider().Name()
	logger := log.WithFields(log.Fields{
		"request_id": requestID,
		"provider":   provider,
		"transport":  TransportWebSocket,
	})
	sink := &wsStream{conn: conn}

	conn.SetReadLimit(maxRequestSize)
	conn.SetReadDeadline(time.Now().Add(firstReadWait))
	var req models.PromptRequest
	if err := conn.ReadJSON(&req); err != nil {
		logger.Warnf("analyze.ws.invalid: %v", err)
		reject(logger, sink, "Invalid request format")
		return
	}
	conn.SetReadDeadline(time.Time{})

	prompt, err := h.relay.Prepare(req)
	if err != nil {
		reject(logger, sink, err.Error())
		return
	}
	if err := h.relay.CheckCredential(); err != nil {
		logger.Errorf("analyze.misconfigured: %v", err)
		reject(logger, sink, configFailure(err).Error)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	// Any read error means the peer closed or broke the socket.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	logger = logger.WithField("prompt_chars", len([]rune(prompt)))
	logger.Info("analyze.request")
	metrics.InFlight.Inc()
	out := h.relay.Stream(ctx, prompt, sink)
	metrics.InFlight.Dec()

	ev := models.AnalysisEvent{
		RequestID:   requestID,
		Provider:    provider,
		Mode:        string(relay.ModeStream),
		Transport:   TransportWebSocket,
		PromptChars: len([]rune(prompt)),
	}
	recordStream(logger, out, &ev)

	elapsed := time.Since(start)
	metrics.DurationSeconds.WithLabelValues(ev.Mode).Observe(elapsed.Seconds())
	metrics.RequestsTotal.WithLabelValues(ev.Mode, ev.Outcome).Inc()
	ev.DurationMs = elapsed.Milliseconds()
	publishEvent(h.events, ev)

	if !out.Disconnected {
		sink.mu.Lock()
		err := conn.WriteControl(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), time.Now().Add(writeWait))
		sink.mu.Unlock()
		if err != nil {
			logger.Debugf("analyze.ws.close_failed: %v", err)
		}
	}
}
