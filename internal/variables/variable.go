// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

// Package variables applies and looks up the name/value pairs Lexia sends
// with each request, e.g. [{"name": "OPENAI_API_KEY", "value": "..."}].
package variables

import (
	"encoding/json"
	"fmt"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// OpenAIAPIKey is the variable name carrying the OpenAI credential.
const OpenAIAPIKey = "OPENAI_API_KEY"

// Variable is one name/value pair as delivered by a caller. It is either an
// Attr (typed object) or an Entry (decoded mapping). Any other value, including
// nil, is malformed.
type Variable interface {
	variable()
}

// Attr is the typed shape of a variable.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Entry is the mapping shape of a variable: it must hold string "name" and
// "value" keys. Extra keys are ignored.
type Entry map[string]any

func (Attr) variable()  {}
func (Entry) variable() {}

// List is an ordered sequence of variables. Names need not be unique.
type List []Variable

// FromValues builds a List from generically decoded elements, as produced
// by encoding/json or yaml.v3 into []any. Mappings become Entry values,
// Variables are kept, and anything else is left as a nil slot so the
// resolver reports it.
func FromValues(elems []any) List {
	if elems == nil {
		return nil
	}
	list := make(List, len(elems))
	for i, elem := range elems {
		switch v := elem.(type) {
		case map[string]any:
			if v != nil {
				list[i] = Entry(v)
			}
		case Variable:
			list[i] = v
		}
	}
	return list
}

// UnmarshalJSON accepts any array. Elements that are not objects reach the
// resolver as malformed entries instead of failing the whole decode.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = FromValues(raw)
	return nil
}

// pair resolves a variable to its name and value. A CodeVariablesEntryInvalid
// error means the shape is unrecognised; CodeVariablesEntryFailure means the
// shape matched but a field could not be read as a string.
func pair(v Variable) (name, value string, err error) {
	switch v := v.(type) {
	case Attr:
		return v.Name, v.Value, nil
	case *Attr:
		if v == nil {
			return "", "", lexiaerr.New(lexiaerr.CodeVariablesEntryInvalid, "invalid variable format: nil")
		}
		return v.Name, v.Value, nil
	case Entry:
		rawName, hasName := v["name"]
		rawValue, hasValue := v["value"]
		if !hasName || !hasValue {
			return "", "", lexiaerr.Errorf(lexiaerr.CodeVariablesEntryInvalid, "invalid variable format: %v", map[string]any(v))
		}
		name, ok := rawName.(string)
		if !ok {
			return "", "", lexiaerr.Errorf(lexiaerr.CodeVariablesEntryFailure, "variable name is %T, not a string", rawName)
		}
		value, ok := rawValue.(string)
		if !ok {
			return name, "", lexiaerr.Errorf(lexiaerr.CodeVariablesEntryFailure, "variable %q value is %T, not a string", name, rawValue)
		}
		return name, value, nil
	default:
		return "", "", lexiaerr.New(lexiaerr.CodeVariablesEntryInvalid, fmt.Sprintf("invalid variable format: %#v", v))
	}
}

// pairName reports only the name; ok is false when the name can never match
// a lookup target. Lookups compare names before reading the value, so an entry
// with a bad value only faults when it is the match.
func pairName(v Variable) (name string, ok bool, err error) {
	e, isEntry := v.(Entry)
	if !isEntry {
		name, _, err = pair(v)
		return name, err == nil, err
	}

	rawName, hasName := e["name"]
	_, hasValue := e["value"]
	if !hasName || !hasValue {
		return "", false, lexiaerr.Errorf(lexiaerr.CodeVariablesEntryInvalid, "invalid variable format: %v", map[string]any(e))
	}
	name, ok = rawName.(string)
	return name, ok, nil
}
