package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"analyze-service/llm"

	"github.com/JexSrs/go-ollama"
)

const (
	DefaultModel = "llama3"
	HostKey      = "OLLAMA_HOST"

	streamBufferSize = 512000
)

// Client is a local Ollama provider. The library has no context support, so
// every call gets its own library client whose transport carries the call's
// context. Canceling the context aborts the HTTP exchange.
type Client struct {
	host  *url.URL
	model string
	base  http.RoundTripper
}

func NewClient(host, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	c := &Client{model: model, base: http.DefaultTransport}
	host = strings.TrimSpace(host)
	if host == "" {
		return c, nil
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	c.host = u
	return c, nil
}

func (c *Client) Name() string {
	return "ollama"
}

// CredentialKey names the host setting; a local Ollama needs no secret
func (c *Client) CredentialKey() string {
	return HostKey
}

func (c *Client) Enabled() bool {
	return c != nil && c.host != nil
}

func (c *Client) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	if !c.Enabled() {
		return "", llm.ErrNotConfigured
	}

	o := c.newOllama(ctx)
	res, err := c.call(ctx, o, c.request(o, prompt, params)...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Response) == "" {
		return "", llm.ErrNoText
	}
	return res.Response, nil
}

// GenerateStream forwards each NDJSON chunk's response text as it arrives.
// When fn fails the exchange is aborted and fn's error is returned.
func (c *Client) GenerateStream(ctx context.Context, prompt string, params llm.Params, fn llm.StreamFn) error {
	if !c.Enabled() {
		return llm.ErrNotConfigured
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fnErr, chunkErr error
	done := false
	o := c.newOllama(ctx)
	opts := append(c.request(o, prompt, params),
		o.Generate.WithStream(true, streamBufferSize, func(r *ollama.GenerateResponse, err error) {
			if fnErr != nil || chunkErr != nil || ctx.Err() != nil {
				return
			}
			if err != nil {
				chunkErr = err
				cancel()
				return
			}
			done = done || r.Done
			if r.Response == "" {
				return
			}
			if err := fn(r.Response); err != nil {
				fnErr = err
				cancel()
			}
		}))

	_, err := c.call(ctx, o, opts...)
	switch {
	case fnErr != nil:
		return fnErr
	case chunkErr != nil:
		return llm.Transport(c.Name(), fmt.Errorf("malformed stream chunk: %w", chunkErr))
	case err != nil:
		return err
	case !done:
		return llm.Transport(c.Name(), errors.New("stream ended before the final chunk"))
	}
	return nil
}

func (c *Client) request(o *ollama.Ollama, prompt string, params llm.Params) []func(*ollama.GenerateRequestBuilder) {
	var opts ollama.Options
	if params.Temperature > 0 {
		t := params.Temperature
		opts.Temperature = &t
	}
	if params.MaxOutputTokens > 0 {
		n := params.MaxOutputTokens
		opts.NumPredict = &n
	}
	return []func(*ollama.GenerateRequestBuilder){
		o.Generate.WithModel(c.model),
		o.Generate.WithPrompt(prompt),
		o.Generate.WithOptions(opts),
	}
}

// call runs the blocking library call and maps its failures. The library's
// chunk splitter panics on a read that starts mid-object.
func (c *Client) call(ctx context.Context, o *ollama.Ollama, opts ...func(*ollama.GenerateRequestBuilder)) (res *ollama.GenerateResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, llm.Transport(c.Name(), fmt.Errorf("malformed stream: %v", p))
		}
	}()

	res, err = o.Generate(opts...)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, c.mapError(err)
}

func (c *Client) newOllama(ctx context.Context) *ollama.Ollama {
	o := ollama.New(*c.host)
	o.Http = &http.Client{Transport: ctxTransport{ctx: ctx, base: c.base}}
	return o
}

// mapError recovers the upstream status from the library's
// "status code: N, body: ..." errors.
func (c *Client) mapError(err error) error {
	var status int
	if _, scanErr := fmt.Sscanf(err.Error(), "status code: %d", &status); scanErr == nil && status > 0 {
		msg := err.Error()
		if i := strings.Index(msg, "body: "); i >= 0 {
			msg = strings.TrimSpace(msg[i+len("body: "):])
		}
		return llm.Status(c.Name(), status, msg)
	}
	return llm.Transport(c.Name(), err)
}

type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
