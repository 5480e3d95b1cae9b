// Package streamclient consumes the analyze endpoint from Go: it sends the
// prompt, negotiates buffered or streamed decoding from the response content
// type, and renders partial text as frames arrive.
package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"analyze-service/models"
	"analyze-service/relay"
)

type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateBuffered
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateBuffered:
		return "buffered"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamError is a failure reported by the relay, either as a JSON error body
// (Status set) or as an error frame inside a stream (Status 0).
type StreamError struct {
	Status  int
	Message string
	Details string
}

func (e *StreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("analyze failed (status %d): %s", e.Status, e.Message)
	}
	return "analyze failed: " + e.Message
}

// Result is the final state of one invocation. Text keeps whatever was
// rendered before a failure.
type Result struct {
	Text     string
	Streamed bool
	Deltas   int
	State    State
}

type Client struct {
	baseURL string
	path    string
	http    *http.Client
	onState func(State)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithPath(path string) Option {
	return func(c *Client) { c.path = path }
}

// WithStateHook observes every state transition
func WithStateHook(fn func(State)) Option {
	return func(c *Client) { c.onState = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    "/api/analyze",
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildRequest composes the prompt from the resume context the caller has.
// The structured fields are sent along so the relay can recompose if needed.
func BuildRequest(resumeText, targetRole string, skillGaps []string) models.PromptRequest {
	req := models.PromptRequest{
		TargetRole: targetRole,
		ResumeText: resumeText,
		SkillGaps:  skillGaps,
	}
	if strings.TrimSpace(resumeText) != "" && strings.TrimSpace(targetRole) != "" {
		req.Prompt = relay.ComposePrompt(targetRole, resumeText, skillGaps)
	}
	return req
}

// Analyze runs one request. render receives the whole accumulated text after
// every delta (streamed) or once (buffered). Every call starts from idle.
func (c *Client) Analyze(ctx context.Context, req models.PromptRequest, render func(text string)) (*Result, error) {
	if render == nil {
		render = func(string) {}
	}
	res := &Result{}
	c.transition(res, StateIdle)

	body, err := json.Marshal(req)
	if err != nil {
		return c.fail(res, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return c.fail(res, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain, application/json")

	c.transition(res, StateRequesting)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.fail(res, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(res, errorBody(resp))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/plain", "text/event-stream":
		res.Streamed = true
		c.transition(res, StateStreaming)
		return c.readStream(res, resp.Body, render)
	case "application/json":
		c.transition(res, StateBuffered)
		return c.readBuffered(res, resp.Body, render)
	default:
		return c.fail(res, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}
}

func (c *Client) readStream(res *Result, body io.Reader, render func(string)) (*Result, error) {
	var text strings.Builder
	dec := NewDecoder(body)
	for {
		ev, err := dec.Next()
		if err != nil {
			res.Text = text.String()
			return c.fail(res, err)
		}
		switch ev.Kind {
		case models.EventDelta:
			text.WriteString(ev.Text)
			res.Deltas++
			res.Text = text.String()
			render(res.Text)
		case models.EventError:
			res.Text = text.String()
			return c.fail(res, &StreamError{Message: ev.Message})
		case models.EventDone:
			res.Text = text.String()
			c.transition(res, StateSuccess)
			return res, nil
		}
	}
}

func (c *Client) readBuffered(res *Result, body io.Reader, render func(string)) (*Result, error) {
	var payload struct {
		Text    *string `json:"text"`
		Error   string  `json:"error"`
		Details string  `json:"details"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return c.fail(res, fmt.Errorf("malformed response: %w", err))
	}
	if payload.Error != "" {
		return c.fail(res, &StreamError{Message: payload.Error, Details: payload.Details})
	}
	if payload.Text == nil {
		return c.fail(res, errors.New("response carries no text"))
	}
	res.Text = *payload.Text
	render(res.Text)
	c.transition(res, StateSuccess)
	return res, nil
}

func errorBody(resp *http.Response) error {
	var payload models.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &StreamError{Status: resp.StatusCode, Message: payload.Error, Details: payload.Details}
}

func (c *Client) transition(res *Result, s State) {
	res.State = s
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Client) fail(res *Result, err error) (*Result, error) {
	c.transition(res, StateError)
	return res, err
}

// Request is the body sent to the analyze endpoint
type Request = models.PromptRequest
