package models

import "time"

// PromptRequest represents the incoming analyze request.
// Either Prompt is set, or ResumeText and TargetRole are set and the
// prompt is composed from them.
type PromptRequest struct {
	Prompt     string   `json:"prompt,omitempty"`
	TargetRole string   `json:"targetRole,omitempty"`
	ResumeText string   `json:"resumeText,omitempty"`
	SkillGaps  []string `json:"skillGaps,omitempty"`
}

// TextResponse is the buffered-mode response body
type TextResponse struct {
	Text string `json:"text"`
}

// ErrorResponse is returned for every error answered before a stream is committed
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// EventKind tags a StreamEvent
type EventKind int

const (
	EventDelta EventKind = iota
	EventError
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// StreamEvent is one frame of the relay output protocol.
// A stream is zero or more deltas followed by exactly one terminal event.
type StreamEvent struct {
	Kind    EventKind
	Text    string
	Message string
}

func Delta(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

func Failure(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message}
}

func Done() StreamEvent {
	return StreamEvent{Kind: EventDone}
}

// IsTerminal reports whether the event ends a stream
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventError || e.Kind == EventDone
}

// Wire values of Frame.Type
const (
	FrameTypeDelta = "text-delta"
	FrameTypeError = "error"
)

// StreamTerminator is the payload of the last data line of every stream
const StreamTerminator = "[DONE]"

// Frame is the JSON payload carried by one "data: " line
type Frame struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Type  string `json:"type"`
}

// Frame converts a non-terminator event to its wire payload.
// Done has no JSON payload and returns ok=false.
func (e StreamEvent) Frame() (Frame, bool) {
	switch e.Kind {
	case EventDelta:
		return Frame{Text: e.Text, Type: FrameTypeDelta}, true
	case EventError:
		return Frame{Error: e.Message, Type: FrameTypeError}, true
	default:
		return Frame{}, false
	}
}

// Event converts a decoded wire payload back into a StreamEvent
func (f Frame) Event() StreamEvent {
	if f.Type == FrameTypeError || f.Error != "" {
		return Failure(f.Error)
	}
	return Delta(f.Text)
}

// AnalysisEvent is published after every finished analyze request
type AnalysisEvent struct {
	RequestID   string `json:"request_id"`
	Provider    string `json:"provider"`
	Mode        string `json:"mode"`
	Transport   string `json:"transport"`
	Outcome     string `json:"outcome"`
	PromptChars int    `json:"prompt_chars"`
	OutputChars int    `json:"output_chars"`
	Deltas      int    `json:"deltas"`
	DurationMs  int64  `json:"duration_ms"`
	Timestamp   string `json:"timestamp"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Provider string `json:"provider"`
	Mode     string `json:"mode"`
}

// JournalEntry is one dated journal note owned by a user
type JournalEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// JournalEntryRequest is the body of create and update calls
type JournalEntryRequest struct {
	Date string `json:"date"`
	Text string `json:"text"`
}
