// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexia-dev/lexia/internal/secrets"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore(kv ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		m.data[kv[i]] = kv[i+1]
	}
	return m
}

func (m *mockSecretStore) Set(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Get(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", lexiaerr.Errorf(lexiaerr.CodeSecretNotFound, "secret %s not found", key)
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return lexiaerr.Errorf(lexiaerr.CodeSecretNotFound, "secret %s not found", key)
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// useSecretStore swaps secretStoreFactory for the duration of the test.
func useSecretStore(t *testing.T, store *mockSecretStore) {
	t.Helper()
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = old })
}

// useHTTPClient points server commands at c for the duration of the test.
func useHTTPClient(t *testing.T, c *http.Client) {
	t.Helper()
	old := defaultHTTPClient
	defaultHTTPClient = c
	t.Cleanup(func() { defaultHTTPClient = old })
}

// isolate gives the test an empty HOME and a fresh secret store so that
// config discovery and bootstrap never touch the real user directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	useSecretStore(t, newMockSecretStore())

	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	return home
}

func runCmdContext(ctx context.Context, t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCmdContext(context.Background(), t, nil, args...)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
