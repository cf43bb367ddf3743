// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package variables

import (
	"fmt"
	"log/slog"

	"github.com/lexia-dev/lexia/internal/secrets"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// Diagnostic describes one skipped entry. Index is -1 for diagnostics about
// the list as a whole.
type Diagnostic struct {
	Index int
	Name  string
	Err   error
}

// Level is warn for empty input and malformed entries, error for faults.
func (d Diagnostic) Level() slog.Level {
	if lexiaerr.HasCode(d.Err, lexiaerr.CodeVariablesInputEmpty) || lexiaerr.HasCode(d.Err, lexiaerr.CodeVariablesEntryInvalid) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func (d Diagnostic) String() string {
	if d.Index < 0 {
		return d.Err.Error()
	}
	return fmt.Sprintf("variable[%d]: %v", d.Index, d.Err)
}

// Report is the outcome of ApplyAll.
type Report struct {
	// Applied lists the names written, in list order. A repeated name appears
	// once per write.
	Applied     []string
	Diagnostics []Diagnostic
}

// Skipped returns the diagnostics that refer to individual entries.
func (r Report) Skipped() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Index >= 0 {
			out = append(out, d)
		}
	}
	return out
}

// Resolver applies variables to a Store and looks them up by name. It holds no
// locks: callers applying different lists concurrently to a shared Store must
// serialize those calls.
type Resolver struct {
	store   Store
	secrets secrets.Store
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSecrets resolves keyring:// values through s before they are written.
func WithSecrets(s secrets.Store) Option {
	return func(r *Resolver) { r.secrets = s }
}

// New returns a Resolver writing to store, or to the process environment
// when store is nil.
func New(store Store, opts ...Option) *Resolver {
	if store == nil {
		store = OSEnv{}
	}
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// ApplyAll writes every well-formed variable into the store in list order, so
// later duplicates win. Bad entries are skipped and reported; ApplyAll never
// fails as a whole.
func (r *Resolver) ApplyAll(vars List) Report {
	var report Report

	if len(vars) == 0 {
		d := Diagnostic{Index: -1, Err: lexiaerr.New(lexiaerr.CodeVariablesInputEmpty, "no variables provided")}
		report.Diagnostics = append(report.Diagnostics, d)
		r.diagnose(d)
		return report
	}

	for i, v := range vars {
		name, err := r.apply(v)
		if err != nil {
			d := Diagnostic{Index: i, Name: name, Err: entryError(err, i, name)}
			report.Diagnostics = append(report.Diagnostics, d)
			r.diagnose(d)
			continue
		}
		report.Applied = append(report.Applied, name)
		r.log().Info("set environment variable", "name", name)
	}

	return report
}

func (r *Resolver) apply(v Variable) (name string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = lexiaerr.Errorf(lexiaerr.CodeVariablesEntryFailure, "setting environment variable: %v", p)
		}
	}()

	name, value, err := pair(v)
	if err != nil {
		return name, err
	}

	if r.secrets != nil && secrets.IsKeyringURI(value) {
		resolved, err := secrets.Resolve(r.secrets, value)
		if err != nil {
			return name, lexiaerr.Wrap(err, lexiaerr.CodeVariablesEntryFailure, "resolving variable value", lexiaerr.FieldVariable(name))
		}
		value = resolved
	}

	if err := r.store.Set(name, value); err != nil {
		return name, lexiaerr.Wrap(err, lexiaerr.CodeVariablesEntryFailure, "setting environment variable", lexiaerr.FieldVariable(name))
	}
	return name, nil
}

// Lookup returns the value of the first variable named name. It never
// touches the store.
func (r *Resolver) Lookup(vars List, name string) (string, bool) {
	if len(vars) == 0 {
		r.log().Warn("no variables provided for lookup", "name", name)
		return "", false
	}

	for i, v := range vars {
		value, found, err := r.match(v, name)
		if err != nil {
			r.diagnose(Diagnostic{Index: i, Err: entryError(err, i, "")})
			continue
		}
		if found {
			r.log().Info("found variable", "name", name)
			return value, true
		}
	}

	r.log().Warn("variable not found", "name", name)
	return "", false
}

func (r *Resolver) match(v Variable, target string) (value string, found bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = lexiaerr.Errorf(lexiaerr.CodeVariablesEntryFailure, "processing variable: %v", p)
		}
	}()

	name, ok, err := pairName(v)
	if err != nil || !ok || name != target {
		return "", false, err
	}

	_, value, err = pair(v)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// LookupOpenAIKey is Lookup for OPENAI_API_KEY.
func (r *Resolver) LookupOpenAIKey(vars List) (string, bool) {
	return r.Lookup(vars, OpenAIAPIKey)
}

// entryError attaches the entry position, and its name when known, to err
// without changing its code.
func entryError(err error, index int, name string) error {
	fields := []lexiaerr.Attr{lexiaerr.FieldIndex(index)}
	if name != "" {
		fields = append(fields, lexiaerr.FieldVariable(name))
	}
	return lexiaerr.With(err, fields...)
}

func (r *Resolver) diagnose(d Diagnostic) {
	attrs := []any{"error", d.Err}
	if d.Index >= 0 {
		attrs = append(attrs, "index", d.Index)
	}
	if d.Name != "" {
		attrs = append(attrs, "name", d.Name)
	}

	switch {
	case d.Index < 0:
		r.log().Warn("no variables provided", attrs...)
	case d.Level() == slog.LevelWarn:
		r.log().Warn("invalid variable format", attrs...)
	default:
		r.log().Error("error processing variable", attrs...)
	}
}

var defaultResolver = New(nil)

// ApplyAll applies vars to the process environment.
func ApplyAll(vars List) Report {
	return defaultResolver.ApplyAll(vars)
}

// Lookup returns the value of the first variable named name.
func Lookup(vars List, name string) (string, bool) {
	return defaultResolver.Lookup(vars, name)
}

// LookupOpenAIKey returns the OPENAI_API_KEY variable.
func LookupOpenAIKey(vars List) (string, bool) {
	return defaultResolver.LookupOpenAIKey(vars)
}
