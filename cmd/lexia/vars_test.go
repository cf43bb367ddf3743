// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

const varsJSON = `[
  {"name": "REGION", "value": "eu-west-1"},
  {"name": "REGION", "value": "us-east-1"},
  {"name": "BROKEN"},
  {"name": "GREETING", "value": "it's here"},
  42
]`

func TestVarsGet_FirstMatchWins(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.json", varsJSON)

	out, _, err := runCmd(t, "vars", "get", "REGION", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1\n", out)
}

func TestVarsGet_NotFound(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.json", varsJSON)

	_, _, err := runCmd(t, "vars", "get", "MISSING", "--file", path)
	require.Error(t, err)
	assert.True(t, lexiaerr.IsNotFound(err))
}

func TestVarsGet_RequiresFile(t *testing.T) {
	isolate(t)

	_, _, err := runCmd(t, "vars", "get", "REGION")
	assert.Error(t, err)
}

func TestVarsExport(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.json", varsJSON)

	out, stderr, err := runCmd(t, "vars", "export", "--file", path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`export GREETING='it'\''s here'`,
		`export REGION='us-east-1'`,
	}, lines(out))
	assert.Contains(t, stderr, "skipped: variable[2]")
	assert.Contains(t, stderr, "skipped: variable[4]")
}

func TestVarsExport_YAML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.yaml", "- name: TOKEN\n  value: abc\n- name: PORT\n  value: 8080\n")

	out, stderr, err := runCmd(t, "vars", "export", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "export TOKEN='abc'\n", out)
	assert.Contains(t, stderr, "skipped: variable[1]")
}

func TestVarsExport_YAMLNonMappingEntries(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.yaml", "- junk\n- 7\n- name: TOKEN\n  value: abc\n- [a, b]\n")

	out, stderr, err := runCmd(t, "vars", "export", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "export TOKEN='abc'\n", out)
	assert.Contains(t, stderr, "skipped: variable[0]")
	assert.Contains(t, stderr, "skipped: variable[1]")
	assert.Contains(t, stderr, "skipped: variable[3]")
}

func TestReadVariables_YAMLMatchesJSON(t *testing.T) {
	jsonList, err := readVariables(writeFile(t, "vars.json", `["junk", {"name": "A", "value": "1"}]`))
	require.NoError(t, err)
	yamlList, err := readVariables(writeFile(t, "vars.yaml", "- junk\n- name: A\n  value: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, jsonList, yamlList)
	require.Len(t, yamlList, 2)
	assert.Nil(t, yamlList[0])
}

func TestVarsExport_EmptyList(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.json", `[]`)

	out, stderr, err := runCmd(t, "vars", "export", "--file", path)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "no variables provided")
}

func TestVarsExport_ResolveSecrets(t *testing.T) {
	isolate(t)
	useSecretStore(t, newMockSecretStore("db_password", "hunter2"))
	path := writeFile(t, "vars.json", `[{"name":"DB_PASSWORD","value":"keyring://lexia/db_password"}]`)

	out, _, err := runCmd(t, "vars", "export", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "export DB_PASSWORD='keyring://lexia/db_password'\n", out)

	out, _, err = runCmd(t, "vars", "export", "--resolve-secrets", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "export DB_PASSWORD='hunter2'\n", out)
}

func TestVarsExport_InvalidFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, "vars.json", `{"name":"not a list"}`)

	_, _, err := runCmd(t, "vars", "export", "--file", path)
	require.Error(t, err)
	assert.True(t, lexiaerr.HasCode(err, lexiaerr.CodeCLIInputInvalid))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `''`, shellQuote(""))
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'a'\''b'`, shellQuote("a'b"))
	assert.Equal(t, `'$HOME'`, shellQuote("$HOME"))
}
