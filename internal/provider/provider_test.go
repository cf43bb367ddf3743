// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package provider_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lexia-dev/lexia/internal/provider"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	events []provider.ChatEvent
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "mock-1", Name: "Mock", Provider: "mock"}}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	ch := make(chan provider.ChatEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Close() error { return nil }

var _ provider.Provider = (*mockProvider)(nil)

func TestCollect_JoinsTextAndUsage(t *testing.T) {
	p := &mockProvider{events: []provider.ChatEvent{
		{Type: provider.EventTypeTextDelta, Text: "Hello"},
		{Type: provider.EventTypeTextDelta, Text: ", world"},
		{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}},
		{Type: provider.EventTypeDone},
	}}

	ch, err := p.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)

	reply, err := provider.Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", reply.Text)
	assert.Equal(t, 10, reply.Usage.InputTokens)
	assert.Equal(t, 5, reply.Usage.OutputTokens)
}

func TestCollect_ErrorEvent(t *testing.T) {
	p := &mockProvider{events: []provider.ChatEvent{
		{Type: provider.EventTypeTextDelta, Text: "partial"},
		{Type: provider.EventTypeError, Error: "rate limited"},
		{Type: provider.EventTypeTextDelta, Text: "ignored"},
	}}

	ch, err := p.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)

	reply, err := provider.Collect(context.Background(), ch)
	require.Error(t, err)
	assert.True(t, lexiaerr.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, "partial", reply.Text)
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := provider.Collect(ctx, make(chan provider.ChatEvent))
	require.Error(t, err)
	assert.True(t, lexiaerr.IsTimeout(err))
}

func TestMessage_JSONShape(t *testing.T) {
	data, err := json.Marshal([]provider.Message{
		provider.SystemMessage("be brief"),
		provider.UserMessage("hi"),
		provider.AssistantMessage("hello"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"role":"system","content":"be brief"},
		{"role":"user","content":"hi"},
		{"role":"assistant","content":"hello"}
	]`, string(data))
}
