// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/lexia-dev/lexia/internal/prompt"
	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/secrets"
	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// MessagesInput is everything needed to assemble a prompt.
type MessagesInput struct {
	Message              string
	History              []provider.Message
	SystemMessage        string
	ProjectSystemMessage string
}

// ChatInput is a MessagesInput plus the variables and model for one chat.
type ChatInput struct {
	MessagesInput
	Variables variables.List
	Model     string
}

// ChatStream is an accepted chat whose reply is still streaming.
type ChatStream struct {
	RequestID string
	Model     string
	Skipped   []string
	Events    <-chan provider.ChatEvent
}

// ChatResult is a completed chat.
type ChatResult struct {
	RequestID string
	Model     string
	Response  string
	Usage     provider.Usage
	Skipped   []string
}

// SystemPrompt picks the system prompt for in. Request values win over
// configured ones and a project prompt wins over a custom one.
func (s *Services) SystemPrompt(in MessagesInput) string {
	return prompt.SelectSystemPrompt(
		firstNonEmpty(in.SystemMessage, s.systemMessage),
		firstNonEmpty(in.ProjectSystemMessage, s.projectPrompt),
	)
}

// Messages assembles the outgoing conversation for in.
func (s *Services) Messages(in MessagesInput) (string, []provider.Message) {
	sys := s.SystemPrompt(in)
	return sys, prompt.BuildMessages(sys, in.History, in.Message)
}

// StreamChat applies the request variables, picks the API key, and submits
// the assembled conversation. The returned stream must be drained.
func (s *Services) StreamChat(ctx context.Context, in ChatInput) (*ChatStream, error) {
	requestID := uuid.NewString()
	log := s.logger.With("request_id", requestID)

	skipped, apiKey, err := s.applyVariables(in.Variables)
	if err != nil {
		return nil, lexiaerr.With(err, lexiaerr.FieldRequestID(requestID))
	}
	if apiKey == "" {
		apiKey = s.fallbackKey
	}
	if apiKey == "" {
		return nil, lexiaerr.New(lexiaerr.CodeProviderKeyMissing,
			"no OpenAI API key: send an OPENAI_API_KEY variable or configure openai.api_key",
			lexiaerr.FieldRequestID(requestID))
	}

	model := firstNonEmpty(in.Model, s.model)
	_, msgs := s.Messages(in.MessagesInput)

	p, err := s.providers(apiKey)
	if err != nil {
		return nil, lexiaerr.With(err, lexiaerr.FieldRequestID(requestID))
	}

	events, err := p.Chat(ctx, provider.ChatRequest{Model: model, Messages: msgs})
	if err != nil {
		_ = p.Close()
		s.record(err)
		return nil, lexiaerr.With(err, lexiaerr.FieldRequestID(requestID))
	}

	log.Info("chat submitted", "provider", p.Name(), "model", model, "messages", len(msgs), "skipped_variables", len(skipped))

	out := make(chan provider.ChatEvent)
	go s.relay(ctx, p, events, out)

	return &ChatStream{
		RequestID: requestID,
		Model:     model,
		Skipped:   skipped,
		Events:    out,
	}, nil
}

// Chat is StreamChat collected into a single reply.
func (s *Services) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	stream, err := s.StreamChat(ctx, in)
	if err != nil {
		return nil, err
	}

	reply, err := provider.Collect(ctx, stream.Events)
	if err != nil {
		// Let relay finish so the provider is closed.
		for range stream.Events {
		}
		return nil, lexiaerr.With(err, lexiaerr.FieldRequestID(stream.RequestID))
	}

	return &ChatResult{
		RequestID: stream.RequestID,
		Model:     stream.Model,
		Response:  reply.Text,
		Usage:     reply.Usage,
		Skipped:   stream.Skipped,
	}, nil
}

// applyVariables writes vars to the store and returns the skipped entries
// and the OPENAI_API_KEY they carry, if any.
func (s *Services) applyVariables(vars variables.List) (skipped []string, apiKey string, err error) {
	if len(vars) == 0 {
		return nil, "", nil
	}

	r := s.resolverFor()

	s.applyMu.Lock()
	report := r.ApplyAll(vars)
	key, ok := r.LookupOpenAIKey(vars)
	s.applyMu.Unlock()

	for _, d := range report.Skipped() {
		skipped = append(skipped, d.String())
	}

	if ok && s.secrets != nil && secrets.IsKeyringURI(key) {
		key, err = secrets.Resolve(s.secrets, key)
		if err != nil {
			// Not wrapped: the caller must see a credentials error, not the
			// keyring's not-found.
			return skipped, "", lexiaerr.Errorf(lexiaerr.CodeProviderKeyMissing, "resolving OPENAI_API_KEY: %v", err)
		}
	}
	return skipped, key, nil
}

// relay forwards events to out, records the outcome, and closes p when the
// stream ends. A caller that goes away is not counted against the provider.
func (s *Services) relay(ctx context.Context, p provider.Provider, in <-chan provider.ChatEvent, out chan<- provider.ChatEvent) {
	defer close(out)
	defer func() { _ = p.Close() }()

	var streamErr error
	for ev := range in {
		if ev.Type == provider.EventTypeError {
			streamErr = lexiaerr.New(lexiaerr.CodeProviderUpstreamFailure, ev.Error)
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			for range in {
			}
			return
		}
	}
	s.record(streamErr)
}

func (s *Services) record(err error) {
	if s.health != nil {
		s.health.Record(err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
