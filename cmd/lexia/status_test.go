// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

func TestStatus_Running(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"status":"degraded","provider":{"success_count":4,"failure_count":2,"available":false}}`)
	}))
	defer srv.Close()
	useHTTPClient(t, srv.Client())

	addr := strings.TrimPrefix(srv.URL, "http://")
	out, _, err := runCmd(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"lexia at " + addr + ": degraded",
		"  provider available: false (successes: 4, failures: 2)",
	}, lines(out))
}

func TestStatus_NotRunning(t *testing.T) {
	isolate(t)

	out, _, err := runCmd(t, "status", "--address", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Equal(t, "lexia at 127.0.0.1:1 is not running (connection refused)\n", out)
}

func TestStatus_ServerError(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	useHTTPClient(t, srv.Client())

	_, _, err := runCmd(t, "status", "--address", strings.TrimPrefix(srv.URL, "http://"))
	require.Error(t, err)
	assert.True(t, lexiaerr.HasCode(err, lexiaerr.CodeCLIServerFailure))
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	isolate(t)
	t.Setenv("LEXIA_VARIABLES_STORE", "request")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := runCmdContext(ctx, t, nil, "serve", "--listen", "127.0.0.1:0")
	assert.NoError(t, err)
}

func TestServe_InvalidListen(t *testing.T) {
	isolate(t)

	_, _, err := runCmd(t, "serve", "--listen", "no-port")
	require.Error(t, err)
	assert.True(t, lexiaerr.IsInvalidInput(err))
}
