// Package openai provides a suggestion source backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/suggest"
)

var _ suggest.Source = (*Source)(nil)

// Source implements suggest.Source using OpenAI chat completions with the
// shared coaching tool surface.
type Source struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the source.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Source.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI suggestion source.
func New(apiKey string, model string, opts ...Option) (*Source, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Source{client: client, model: model}, nil
}

// Analyze implements suggest.Source.
func (s *Source) Analyze(ctx context.Context, req suggest.Request) ([]coach.RawSuggestion, error) {
	params := s.buildParams(req)

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	var out []coach.RawSuggestion
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		raw, err := suggest.FromToolCall(tc.Function.Name, tc.Function.Arguments, req.Offset)
		if err != nil {
			// One malformed call must not discard the rest of the batch.
			slog.Warn("openai: skipping malformed tool call", "name", tc.Function.Name, "err", err)
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

// Name implements suggest.Source.
func (s *Source) Name() string { return "openai" }

// Close implements suggest.Source. The OpenAI client holds no connection
// state worth tearing down.
func (s *Source) Close() error { return nil }

// buildParams converts an analysis request into OpenAI SDK params.
func (s *Source) buildParams(req suggest.Request) oai.ChatCompletionNewParams {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(suggest.BuildSystemPrompt(req)),
			oai.UserMessage(suggest.BuildUserMessage(req)),
		},
	}

	for _, td := range suggest.ToolDefinitions() {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(td.Parameters),
			},
		})
	}

	return params
}
