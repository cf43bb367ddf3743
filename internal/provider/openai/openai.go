// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package openai

import (
	"context"
	"errors"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lexia-dev/lexia/internal/provider"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

const (
	Name           = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1-mini"
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a proxy or a test server.
	BaseURL string
	// MaxRetries is passed to the SDK when non-negative; negative keeps the SDK default.
	MaxRetries int
	HTTPClient *http.Client
}

// Provider implements provider.Provider using the Chat Completions API.
type Provider struct {
	client openaisdk.Client
}

// New creates a provider. The API key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, lexiaerr.New(lexiaerr.CodeProviderKeyMissing, "openai: missing api key",
			lexiaerr.FieldProvider(Name))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Provider{client: openaisdk.NewClient(opts...)}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Close() error { return nil }

func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: Name, MaxContextTokens: 1047576, MaxOutputTokens: 32768},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: Name, MaxContextTokens: 1047576, MaxOutputTokens: 32768},
		{ID: "gpt-4.1-nano", Name: "GPT-4.1 Nano", Provider: Name, MaxContextTokens: 1047576, MaxOutputTokens: 32768},
		{ID: "gpt-4o", Name: "GPT-4o", Provider: Name, MaxContextTokens: 128000, MaxOutputTokens: 16384},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: Name, MaxContextTokens: 128000, MaxOutputTokens: 16384},
		{ID: "o4-mini", Name: "o4-mini", Provider: Name, MaxContextTokens: 200000, MaxOutputTokens: 100000},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

// ValidateKey makes a models listing call to confirm the key is accepted.
func (p *Provider) ValidateKey(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err == nil {
		return nil
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return lexiaerr.Errorf(lexiaerr.CodeProviderKeyRejected, "openai rejected the api key (HTTP %d)", apiErr.StatusCode)
	}
	return lexiaerr.Wrap(err, lexiaerr.CodeProviderUpstreamFailure, "openai: validating api key")
}

// Chat validates the request synchronously and streams the completion on
// the returned channel, which is closed when the stream ends.
func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	events := make(chan provider.ChatEvent, 64)
	go func() {
		defer close(events)
		p.stream(ctx, params, events)
	}()
	return events, nil
}

func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return openaisdk.ChatCompletionNewParams{}, lexiaerr.New(lexiaerr.CodeProviderRequestInvalid, "openai: model is required")
	}
	if len(req.Messages) == 0 {
		return openaisdk.ChatCompletionNewParams{}, lexiaerr.New(lexiaerr.CodeProviderRequestInvalid, "openai: at least one message is required")
	}

	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature > 0 {
		params.Temperature = param.NewOpt(float64(req.Options.Temperature))
	}
	if len(req.Options.StopSequences) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Options.StopSequences,
		}
	}
	return params, nil
}

// convertMessages maps role-tagged messages onto SDK params. Roles the API
// cannot accept without extra fields are rejected here, not earlier.
func convertMessages(msgs []provider.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case provider.RoleDeveloper:
			out = append(out, openaisdk.DeveloperMessage(msg.Content))
		case provider.RoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case provider.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(msg.Content))
		default:
			return nil, lexiaerr.Errorf(lexiaerr.CodeProviderRequestInvalid,
				"openai: unsupported role %q in message %d", msg.Role, i)
		}
	}
	return out, nil
}

func (p *Provider) stream(ctx context.Context, params openaisdk.ChatCompletionNewParams, events chan<- provider.ChatEvent) {
	send := func(ev provider.ChatEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !send(provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: choice.Delta.Content}) {
				return
			}
		}

		// With include_usage the final chunk carries totals and no choices.
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			if !send(provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(chunk.Usage.PromptTokens),
					OutputTokens:    int(chunk.Usage.CompletionTokens),
					CacheReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
				},
			}) {
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		send(provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
		return
	}

	send(provider.ChatEvent{Type: provider.EventTypeDone})
}
