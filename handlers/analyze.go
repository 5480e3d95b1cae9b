package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"analyze-service/llm"
	"analyze-service/metrics"
	"analyze-service/middleware"
	"analyze-service/models"
	"analyze-service/relay"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// EventPublisher receives one AnalysisEvent per finished request
type EventPublisher interface {
	Publish(message interface{}) error
}

type AnalyzeHandler struct {
	relay  *relay.Relay
	events EventPublisher
}

// NewAnalyzeHandler creates the analyze handler. events may be nil.
func NewAnalyzeHandler(r *relay.Relay, events EventPublisher) *AnalyzeHandler {
	return &AnalyzeHandler{relay: r, events: events}
}

// Analyze serves every method on the analyze endpoint
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodPost:
	default:
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
		return
	}

	start := time.Now()
	mode := h.relay.Mode()
	provider := h.relay.Provider().Name()
	requestID := middleware.GetRequestID(c)
	logger := log.WithFields(log.Fields{
		"request_id": requestID,
		"provider":   provider,
		"mode":       string(mode),
	})

	var req models.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warnf("analyze.request.invalid: %v", err)
		metrics.RequestsTotal.WithLabelValues(string(mode), "invalid").Inc()
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request format"})
		return
	}

	prompt, err := h.relay.Prepare(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(string(mode), "invalid").Inc()
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.relay.CheckCredential(); err != nil {
		logger.Errorf("analyze.misconfigured: %v", err)
		metrics.RequestsTotal.WithLabelValues(string(mode), "misconfigured").Inc()
		c.JSON(http.StatusInternalServerError, configFailure(err))
		return
	}

	logger = logger.WithField("prompt_chars", len([]rune(prompt)))
	logger.Info("analyze.request")

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	ev := models.AnalysisEvent{
		RequestID:   requestID,
		Provider:    provider,
		Mode:        string(mode),
		Transport:   TransportHTTP,
		PromptChars: len([]rune(prompt)),
	}

	if mode == relay.ModeBuffered {
		h.buffered(c, logger, prompt, &ev)
	} else {
		h.stream(c, logger, prompt, &ev)
	}

	elapsed := time.Since(start)
	metrics.DurationSeconds.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	metrics.RequestsTotal.WithLabelValues(string(mode), ev.Outcome).Inc()
	ev.DurationMs = elapsed.Milliseconds()
	publishEvent(h.events, ev)
}

func (h *AnalyzeHandler) buffered(c *gin.Context, logger log.Interface, prompt string, ev *models.AnalysisEvent) {
	text, err := h.relay.Buffered(c.Request.Context(), prompt)
	if err != nil {
		status, body := upstreamFailure(err)
		ev.Outcome = outcomeOf(err)
		metrics.UpstreamErrorsTotal.WithLabelValues(ev.Provider).Inc()
		logger.WithField("status", status).Errorf("analyze.buffered.failed: %v", err)
		c.JSON(status, body)
		return
	}

	ev.Outcome = "success"
	ev.OutputChars = len([]rune(text))
	logger.WithField("output_chars", ev.OutputChars).Info("analyze.buffered.done")
	c.JSON(http.StatusOK, models.TextResponse{Text: text})
}

func (h *AnalyzeHandler) stream(c *gin.Context, logger log.Interface, prompt string, ev *models.AnalysisEvent) {
	stream := relay.NewHTTPStream(c.Writer)
	if err := stream.Commit(); err != nil {
		ev.Outcome = "disconnected"
		logger.Debugf("analyze.stream.commit_failed: %v", err)
		return
	}

	out := h.relay.Stream(c.Request.Context(), prompt, stream)
	recordStream(logger, out, ev)
}

func recordStream(logger log.Interface, out *relay.Outcome, ev *models.AnalysisEvent) {
	ev.Outcome = out.Label()
	ev.Deltas = out.Deltas
	ev.OutputChars = out.Chars
	metrics.StreamDeltasTotal.Add(float64(out.Deltas))

	fields := log.Fields{"deltas": out.Deltas, "output_chars": out.Chars, "outcome": ev.Outcome}
	switch ev.Outcome {
	case "disconnected":
		logger.WithFields(fields).Debug("analyze.stream.client_gone")
	case "success":
		logger.WithFields(fields).Info("analyze.stream.done")
	default:
		metrics.UpstreamErrorsTotal.WithLabelValues(ev.Provider).Inc()
		logger.WithFields(fields).Errorf("analyze.stream.failed: %v", out.Err)
	}
}

func configFailure(err error) models.ErrorResponse {
	var cfgErr *relay.ConfigurationError
	if errors.As(err, &cfgErr) {
		return models.ErrorResponse{Error: cfgErr.Error(), Details: cfgErr.Details()}
	}
	return models.ErrorResponse{Error: "Service misconfigured", Details: err.Error()}
}

func upstreamFailure(err error) (int, models.ErrorResponse) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, models.ErrorResponse{Error: "Generation timed out."}
	}
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.HTTPStatus(), models.ErrorResponse{Error: "Failed to generate analysis", Details: upErr.Error()}
	}
	return http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate analysis", Details: err.Error()}
}

func outcomeOf(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "disconnected"
	}
	return "upstream_error"
}

func publishEvent(events EventPublisher, ev models.AnalysisEvent) {
	if events == nil {
		return
	}
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	go func() {
		if err := events.Publish(ev); err != nil {
			metrics.EventsPublishErrorsTotal.Inc()
			log.WithField("request_id", ev.RequestID).Warnf("analyze.event.publish_failed: %v", err)
		}
	}()
}
