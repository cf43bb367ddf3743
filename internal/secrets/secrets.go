// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

// Package secrets resolves credentials that are kept out of config files and
// request payloads. Values are referenced as keyring://service/key.
package secrets

// DefaultService is the keyring service Lexia stores its own secrets under.
const DefaultService = "lexia"

// Store provides secret storage operations keyed by service and key.
type Store interface {
	Set(service, key, value string) error

	// Get returns a CodeSecretNotFound error if the key does not exist.
	Get(service, key string) (string, error)

	Delete(service, key string) error

	// List returns the key names stored under service, in insertion order.
	List(service string) ([]string, error)
}
