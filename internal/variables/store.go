// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package variables

import (
	"os"
	"sort"
	"sync"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// Store is the environment that ApplyAll writes into.
type Store interface {
	Set(key, value string) error
	Get(key string) (string, bool)
}

// OSEnv is the process environment. Writes are visible process-wide and are
// last-write-wins across goroutines.
type OSEnv struct{}

func (OSEnv) Set(key, value string) error {
	if err := os.Setenv(key, value); err != nil {
		return lexiaerr.Wrapf(err, lexiaerr.CodeVariablesStoreFailure, "setting environment variable %q", key)
	}
	return nil
}

func (OSEnv) Get(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapStore is an isolated in-memory environment, safe for concurrent use.
type MapStore struct {
	mu   sync.RWMutex
	vars map[string]string
}

func NewMapStore() *MapStore {
	return &MapStore{vars: make(map[string]string)}
}

// Set rejects the same keys the process environment would: empty names and
// names containing '=' or NUL.
func (s *MapStore) Set(key, value string) error {
	if !validKey(key) {
		return lexiaerr.Errorf(lexiaerr.CodeVariablesStoreInvalid, "invalid environment variable name %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vars == nil {
		s.vars = make(map[string]string)
	}
	s.vars[key] = value
	return nil
}

func (s *MapStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

// Keys returns the stored names in sorted order.
func (s *MapStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ returns the contents as KEY=value strings, sorted by key.
func (s *MapStore) Environ() []string {
	keys := s.Keys()
	s.mu.RLock()
	defer s.mu.RUnlock()
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+s.vars[k])
	}
	return env
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] == '=' || key[i] == 0 {
			return false
		}
	}
	return true
}
