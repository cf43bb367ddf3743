// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// newOpenAIServer fakes the streaming chat completions endpoint and records
// the Authorization header and model of each request.
func newOpenAIServer(t *testing.T, reply ...string) (*httptest.Server, *[]string, *[]string) {
	t.Helper()
	var auth, models []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		auth = append(auth, r.Header.Get("Authorization"))
		models = append(models, body.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range reply {
			delta, _ := json.Marshal(text)
			_, _ = fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":%q,"choices":[{"index":0,"delta":{"content":%s},"finish_reason":null}]}`+"\n\n", body.Model, delta)
		}
		_, _ = fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":%q,"choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`+"\n\n", body.Model)
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &auth, &models
}

func TestChat_LocalUsesKeyFromVariables(t *testing.T) {
	isolate(t)
	srv, auth, models := newOpenAIServer(t, "Hel", "lo")
	t.Setenv("LEXIA_OPENAI_BASE_URL", srv.URL)
	t.Setenv("LEXIA_VARIABLES_STORE", "request")
	vars := writeFile(t, "vars.json", `[{"name":"OPENAI_API_KEY","value":"sk-test"},{"name":"BROKEN"}]`)

	out, stderr, err := runCmd(t, "chat", "--vars", vars, "--model", "gpt-4.1", "say", "hello")
	require.NoError(t, err)

	assert.Equal(t, "Hello\n", out)
	assert.Contains(t, stderr, "skipped: variable[1]")
	assert.Equal(t, []string{"Bearer sk-test"}, *auth)
	assert.Equal(t, []string{"gpt-4.1"}, *models)
}

func TestChat_LocalFallsBackToConfiguredKey(t *testing.T) {
	isolate(t)
	srv, auth, models := newOpenAIServer(t, "ok")
	t.Setenv("LEXIA_OPENAI_BASE_URL", srv.URL)
	t.Setenv("LEXIA_VARIABLES_STORE", "request")
	t.Setenv("LEXIA_OPENAI_API_KEY", "sk-configured")

	out, _, err := runCmd(t, "chat", "hi")
	require.NoError(t, err)

	assert.Equal(t, "ok\n", out)
	assert.Equal(t, []string{"Bearer sk-configured"}, *auth)
	assert.Equal(t, []string{"gpt-4.1-mini"}, *models)
}

func TestChat_LocalWithoutKey(t *testing.T) {
	isolate(t)
	srv, auth, _ := newOpenAIServer(t, "unused")
	t.Setenv("LEXIA_OPENAI_BASE_URL", srv.URL)
	t.Setenv("LEXIA_VARIABLES_STORE", "request")

	_, _, err := runCmd(t, "chat", "hi")
	require.Error(t, err)
	assert.True(t, lexiaerr.IsUnauthorized(err))
	assert.Empty(t, *auth)
}

func TestChat_RequiresMessage(t *testing.T) {
	isolate(t)

	_, _, err := runCmd(t, "chat")
	assert.Error(t, err)
}

func TestChat_Remote(t *testing.T) {
	isolate(t)

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: meta\ndata: {\"request_id\":\"r1\",\"model\":\"gpt-4.1\",\"skipped_variables\":[\"variable[0]: bad\"]}\n\n")
		_, _ = fmt.Fprint(w, "event: text_delta\ndata: {\"text\":\"Hi \"}\n\n")
		_, _ = fmt.Fprint(w, "event: text_delta\ndata: {\"text\":\"there\"}\n\n")
		_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
	}))
	defer srv.Close()
	useHTTPClient(t, srv.Client())

	vars := writeFile(t, "vars.json", `[{"name":"OPENAI_API_KEY","value":"sk-remote"}]`)
	out, stderr, err := runCmd(t, "chat", "--address", strings.TrimPrefix(srv.URL, "http://"),
		"--vars", vars, "--model", "gpt-4.1", "hello", "there")
	require.NoError(t, err)

	assert.Equal(t, "Hi there\n", out)
	assert.Contains(t, stderr, "skipped: variable[0]: bad")
	assert.Equal(t, "hello there", got["message"])
	assert.Equal(t, "gpt-4.1", got["model"])
	require.Len(t, got["variables"], 1)
}

func TestChat_RemoteErrorEvent(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: text_delta\ndata: {\"text\":\"partial\"}\n\n")
		_, _ = fmt.Fprint(w, "event: error\ndata: {\"error\":\"upstream went away\"}\n\n")
	}))
	defer srv.Close()
	useHTTPClient(t, srv.Client())

	out, _, err := runCmd(t, "chat", "--address", strings.TrimPrefix(srv.URL, "http://"), "hi")
	require.Error(t, err)
	assert.True(t, lexiaerr.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "upstream went away")
	assert.Equal(t, "partial", out)
}

func TestChat_RemoteRejected(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":"no OpenAI API key"}`)
	}))
	defer srv.Close()
	useHTTPClient(t, srv.Client())

	_, _, err := runCmd(t, "chat", "--address", strings.TrimPrefix(srv.URL, "http://"), "hi")
	require.Error(t, err)
	assert.True(t, lexiaerr.HasCode(err, lexiaerr.CodeCLIServerFailure))
	assert.Contains(t, err.Error(), "status 401")
}

func TestChat_RemoteUnreachable(t *testing.T) {
	isolate(t)

	_, _, err := runCmd(t, "chat", "--address", "127.0.0.1:1", "hi")
	require.Error(t, err)
	assert.True(t, lexiaerr.HasCode(err, lexiaerr.CodeCLIServerUnavailable))
}
