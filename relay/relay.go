package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analyze-service/llm"
	"analyze-service/models"

	"github.com/apex/log"
)

// Mode selects how a response is delivered. It is configuration, never a client choice.
type Mode string

const (
	ModeBuffered Mode = "buffered"
	ModeStream   Mode = "stream"
)

// ParseMode validates a configured mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBuffered:
		return ModeBuffered, nil
	case ModeStream, "":
		return ModeStream, nil
	default:
		return "", fmt.Errorf("unknown relay mode %q (want %q or %q)", s, ModeBuffered, ModeStream)
	}
}

const (
	DefaultTimeout     = 2 * time.Minute
	DefaultPlaceholder = "No content generated. Please try again."
)

type Config struct {
	Mode           Mode
	MaxPromptChars int
	Timeout        time.Duration
	Params         llm.Params
	// Placeholder is returned in buffered mode when the upstream produced no text
	Placeholder string
}

// EventSink receives the ordered events of one streamed response
type EventSink interface {
	Send(ev models.StreamEvent) error
}

// Relay forwards a prompt to one provider. It holds no per-request state and
// is shared by all requests.
type Relay struct {
	provider llm.Provider
	cfg      Config
}

func New(provider llm.Provider, cfg Config) *Relay {
	if cfg.Mode == "" {
		cfg.Mode = ModeStream
	}
	if cfg.MaxPromptChars == 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Params == (llm.Params{}) {
		cfg.Params = llm.DefaultParams()
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	return &Relay{provider: provider, cfg: cfg}
}

func (r *Relay) Mode() Mode {
	return r.cfg.Mode
}

func (r *Relay) Provider() llm.Provider {
	return r.provider
}

// Prepare returns the prompt to send upstream. An explicit prompt wins;
// otherwise one is composed from the resume text and target role.
// Oversized prompts are truncated rather than rejected.
func (r *Relay) Prepare(req models.PromptRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && strings.TrimSpace(req.ResumeText) != "" && strings.TrimSpace(req.TargetRole) != "" {
		prompt = ComposePrompt(req.TargetRole, req.ResumeText, req.SkillGaps)
	}
	if prompt == "" {
		return "", &ValidationError{Message: ErrNoPrompt}
	}

	if cut, truncated := Truncate(prompt, r.cfg.MaxPromptChars); truncated {
		log.WithFields(log.Fields{
			"prompt_chars": len([]rune(prompt)),
			"max_chars":    r.cfg.MaxPromptChars,
		}).Warn("analyze.prompt.truncated")
		prompt = cut
	}
	return prompt, nil
}

// CheckCredential fails when the provider has no credential configured
func (r *Relay) CheckCredential() error {
	if r.provider.Enabled() {
		return nil
	}
	return &ConfigurationError{Key: r.provider.CredentialKey(), Provider: r.provider.Name()}
}

// Buffered waits for the complete generation. An upstream that succeeded
// without any text yields the placeholder, not an error.
func (r *Relay) Buffered(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	text, err := r.provider.Generate(ctx, prompt, r.cfg.Params)
	if errors.Is(err, llm.ErrNoText) {
		log.WithField("provider", r.provider.Name()).Warnf("analyze.buffered.empty: %v", err)
		return r.cfg.Placeholder, nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Outcome summarizes one streamed response
type Outcome struct {
	Deltas       int
	Chars        int
	Text         string
	Err          error
	Disconnected bool
}

// Label is the metrics/log outcome name
func (o *Outcome) Label() string {
	switch {
	case o.Disconnected:
		return "disconnected"
	case errors.Is(o.Err, context.DeadlineExceeded):
		return "timeout"
	case o.Err != nil:
		return "upstream_error"
	default:
		return "success"
	}
}

// Stream relays the upstream fragments as delta events and ends with exactly
// one terminal event. When the sink fails the client is gone: the upstream
// read is abandoned and nothing more is written.
func (r *Relay) Stream(ctx context.Context, prompt string, sink EventSink) *Outcome {
	out := &Outcome{}
	var text strings.Builder
	defer func() { out.Text = text.String() }()
	streamCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var sinkErr error
	err := r.provider.GenerateStream(streamCtx, prompt, r.cfg.Params, func(fragment string) error {
		if fragment == "" {
			return nil
		}
		if err := sink.Send(models.Delta(fragment)); err != nil {
			sinkErr = err
			cancel()
			return err
		}
		out.Deltas++
		out.Chars += len([]rune(fragment))
		text.WriteString(fragment)
		return nil
	})

	switch {
	case sinkErr != nil:
		out.Err = sinkErr
		out.Disconnected = true
		return out
	case err != nil && ctx.Err() != nil:
		// The caller's context ended: the client went away mid-stream.
		out.Err = ctx.Err()
		out.Disconnected = true
		return out
	case errors.Is(err, llm.ErrNoText):
		err = nil
	}

	terminal := models.Done()
	if err != nil {
		out.Err = err
		terminal = models.Failure(failureMessage(err))
	}
	if sendErr := sink.Send(terminal); sendErr != nil {
		out.Disconnected = true
		if out.Err == nil {
			out.Err = sendErr
		}
	}
	return out
}

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Generation timed out."
	}
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Error()
	}
	return err.Error()
}
