// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/server"
)

// fakeUpstream hands out mockProviders and remembers what they were asked.
type fakeUpstream struct {
	mu       sync.Mutex
	events   []provider.ChatEvent
	chatErr  error
	keys     []string
	requests []provider.ChatRequest
	closed   int
}

func newFakeUpstream(text ...string) *fakeUpstream {
	u := &fakeUpstream{}
	for _, t := range text {
		u.events = append(u.events, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: t})
	}
	u.events = append(u.events,
		provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 12, OutputTokens: 3}},
		provider.ChatEvent{Type: provider.EventTypeDone},
	)
	return u
}

func (u *fakeUpstream) factory(apiKey string) (provider.Provider, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, apiKey)
	return &mockProvider{upstream: u}, nil
}

func (u *fakeUpstream) lastKey() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.keys) == 0 {
		return ""
	}
	return u.keys[len(u.keys)-1]
}

func (u *fakeUpstream) lastRequest() provider.ChatRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		return provider.ChatRequest{}
	}
	return u.requests[len(u.requests)-1]
}

func (u *fakeUpstream) closedCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

type mockProvider struct {
	upstream *fakeUpstream
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "mock-1", Provider: "mock"}}, nil
}

func (m *mockProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	u := m.upstream
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests = append(u.requests, req)
	if u.chatErr != nil {
		return nil, u.chatErr
	}
	ch := make(chan provider.ChatEvent, len(u.events))
	for _, ev := range u.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Close() error {
	m.upstream.mu.Lock()
	m.upstream.closed++
	m.upstream.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	return srv
}

// newChatServer registers services built from cfg; Providers, DefaultModel
// and Logger are filled in when unset.
func newChatServer(t *testing.T, u *fakeUpstream, cfg server.ServicesConfig) *server.Server {
	t.Helper()
	if cfg.Providers == nil {
		cfg.Providers = u.factory
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4.1-mini"
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	svc, err := server.NewServices(cfg)
	require.NoError(t, err)

	srv := newTestServer(t)
	srv.RegisterServices(svc)
	return srv
}

func postJSON(t *testing.T, h http.Handler, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req.WithContext(ctx))
	return w
}
