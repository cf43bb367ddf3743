// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
	"github.com/zalando/go-keyring"
)

// indexKeySuffix names the entry holding the JSON list of keys for a service.
// go-keyring cannot enumerate keys on its own.
const indexKeySuffix = "::index"

// KeyringStore implements Store on top of the OS keyring (Keychain,
// secret-service over D-Bus, or Windows Credential Manager).
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := validate("set", service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return lexiaerr.Wrapf(err, lexiaerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	keys, err := s.index(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.writeIndex(service, append(keys, key))
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := validate("get", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", lexiaerr.Errorf(lexiaerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", lexiaerr.Wrapf(err, lexiaerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := validate("delete", service, key); err != nil {
		return err
	}

	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return lexiaerr.Errorf(lexiaerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return lexiaerr.Wrapf(err, lexiaerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := s.index(service)
	if err != nil {
		return err
	}
	return s.writeIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.index(service)
}

func (s *KeyringStore) index(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexKeySuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, lexiaerr.Wrapf(err, lexiaerr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, lexiaerr.Wrapf(err, lexiaerr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) writeIndex(service string, keys []string) error {
	indexKey := service + indexKeySuffix

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return lexiaerr.Wrapf(err, lexiaerr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return lexiaerr.Wrapf(err, lexiaerr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}

func validate(op, service, key string) error {
	if service == "" {
		return lexiaerr.Errorf(lexiaerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return lexiaerr.Errorf(lexiaerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}
