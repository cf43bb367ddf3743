// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// requestFile is the on-disk form of a message request, in JSON or YAML.
type requestFile struct {
	Message              string             `json:"message" yaml:"message"`
	ConversationHistory  []provider.Message `json:"conversation_history" yaml:"conversation_history"`
	SystemMessage        string             `json:"system_message" yaml:"system_message"`
	ProjectSystemMessage string             `json:"project_system_message" yaml:"project_system_message"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decodeFile reads path as YAML when its extension says so and as JSON
// otherwise.
func decodeFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIInputInvalid, "reading %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, dst)
	} else {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLIInputInvalid, "parsing %s: %w", path, err)
	}
	return nil
}

// readVariables loads a variable list. Elements keep their decoded shape so
// malformed entries are reported by the resolver rather than here.
func readVariables(path string) (variables.List, error) {
	if isYAML(path) {
		var raw []any
		if err := decodeFile(path, &raw); err != nil {
			return nil, err
		}
		return variables.FromValues(raw), nil
	}

	var list variables.List
	if err := decodeFile(path, &list); err != nil {
		return nil, err
	}
	return list, nil
}
