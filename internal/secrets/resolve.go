// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package secrets

import (
	"errors"
	"strings"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
	"github.com/spf13/viper"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key. The key may contain slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", lexiaerr.Errorf(lexiaerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", lexiaerr.Errorf(lexiaerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns the secret referenced by value, or value unchanged when it
// is not a keyring URI.
func Resolve(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Get(service, key)
	if err != nil {
		return "", lexiaerr.Wrapf(err, lexiaerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string in v with the secret it
// references. Unresolvable keys keep their URI and are reported together.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, lexiaerr.Wrapf(err, lexiaerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}

	if len(errs) == 0 {
		return nil
	}
	return lexiaerr.Wrapf(errors.Join(errs...), lexiaerr.CodeSecretResolveFailure, "resolving config secrets")
}
