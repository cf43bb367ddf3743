// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package prompt

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// Project is a project-level prompt file, in YAML:
//
//	system_message: |
//	  You answer questions about the Acme handbook.
//	model: gpt-4.1
//
// or, when the path ends in .toml, the same keys in TOML.
type Project struct {
	SystemMessage string `yaml:"system_message" toml:"system_message"`
	Model         string `yaml:"model,omitempty" toml:"model"`
}

// LoadProject reads a project prompt file. Unknown keys are rejected so that
// typos do not silently fall back to the default prompt.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lexiaerr.Wrapf(err, lexiaerr.CodePromptProjectReadFailure, "reading project prompt %s", path)
	}

	var p Project
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = decodeTOML(data, &p)
	} else {
		err = decodeYAML(data, &p)
	}
	if err != nil {
		return nil, lexiaerr.Wrapf(err, lexiaerr.CodePromptProjectInvalidFormat, "parsing project prompt %s", path)
	}
	return &p, nil
}

func decodeYAML(data []byte, p *Project) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, p *Project) error {
	md, err := toml.Decode(string(data), p)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return lexiaerr.Errorf(lexiaerr.CodePromptProjectInvalidFormat, "unknown key %q", undecoded[0].String())
	}
	return nil
}
