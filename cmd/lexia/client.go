// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
// Tests replace it with an httptest client.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// serverClient provides HTTP access to a running lexia server.
type serverClient struct {
	baseURL string
	http    *http.Client
}

func newServerClient(addr string) *serverClient {
	return &serverClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *serverClient) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIInputInvalid, "building request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIServerFailure, "invalid response: %w", err)
	}
	return nil
}

// sseEvent is one server-sent event.
type sseEvent struct {
	Event string
	Data  string
}

// postSSE posts body as JSON and calls fn for every event in the streamed
// reply. It stops early when fn returns an error.
func (c *serverClient) postSSE(ctx context.Context, path string, body any, fn func(sseEvent) error) error {
	data, err := json.Marshal(body)
	if err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIInputInvalid, "encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIInputInvalid, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var current sseEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Event != "" {
				if err := fn(current); err != nil {
					return err
				}
			}
			current = sseEvent{}
		}
	}
	if err := scanner.Err(); err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIServerFailure, "reading stream: %w", err)
	}
	return nil
}

func (c *serverClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return nil, lexiaerr.Errorf(lexiaerr.CodeCLIServerUnavailable, "lexia server at %s is not running: %w", req.URL.Host, err)
		}
		return nil, lexiaerr.Errorf(lexiaerr.CodeCLIServerFailure, "request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, lexiaerr.Errorf(lexiaerr.CodeCLIServerFailure, "server returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// isDialError reports whether err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
