// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

func newVarsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Inspect and apply variable files",
		Long:  "Work with JSON or YAML lists of {name, value} variables without touching the process environment.",
	}

	cmd.PersistentFlags().StringP("file", "f", "", "variables file (JSON, or YAML by extension)")
	_ = cmd.MarkPersistentFlagRequired("file")

	cmd.AddCommand(
		newVarsGetCmd(),
		newVarsExportCmd(),
	)

	return cmd
}

func newVarsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print the value of the first variable with the given name",
		Args:  cobra.ExactArgs(1),
		RunE:  runVarsGet,
	}
}

func newVarsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print shell export lines for every applicable variable",
		Long:  "Apply the variables to an isolated store and print one export line per resulting name. Skipped entries are reported on stderr.",
		RunE:  runVarsExport,
	}

	cmd.Flags().Bool("resolve-secrets", false, "replace keyring:// values with the stored secret")

	return cmd
}

func runVarsGet(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	vars, err := readVariables(path)
	if err != nil {
		return err
	}

	r := variables.New(variables.NewMapStore(), variables.WithLogger(slog.Default()))
	value, ok := r.Lookup(vars, args[0])
	if !ok {
		return lexiaerr.Errorf(lexiaerr.CodeVariablesLookupNotFound, "variable %q not found in %s", args[0], path)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func runVarsExport(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	vars, err := readVariables(path)
	if err != nil {
		return err
	}

	opts := []variables.Option{variables.WithLogger(slog.Default())}
	if resolve, _ := cmd.Flags().GetBool("resolve-secrets"); resolve {
		opts = append(opts, variables.WithSecrets(secretStoreFactory()))
	}

	store := variables.NewMapStore()
	report := variables.New(store, opts...).ApplyAll(vars)

	out := cmd.OutOrStdout()
	for _, name := range store.Keys() {
		value, _ := store.Get(name)
		if _, err := fmt.Fprintf(out, "export %s=%s\n", name, shellQuote(value)); err != nil {
			return err
		}
	}

	errOut := cmd.ErrOrStderr()
	for _, d := range report.Diagnostics {
		_, _ = fmt.Fprintf(errOut, "skipped: %s\n", d)
	}
	return nil
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
