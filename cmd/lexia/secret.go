// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	openaiprov "github.com/lexia-dev/lexia/internal/provider/openai"
	"github.com/lexia-dev/lexia/internal/secrets"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. Tests substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// keyValidator checks an OpenAI key against the configured endpoint.
// Tests substitute a stub.
var keyValidator = func(ctx context.Context, baseURL, key string) error {
	p, err := openaiprov.New(openaiprov.Config{APIKey: key, BaseURL: baseURL, MaxRetries: 0})
	if err != nil {
		return err
	}
	return p.ValidateKey(ctx)
}

func newSecretCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "Set, list, and delete secrets stored under the lexia service. Reference them from config or variables as keyring://lexia/<name>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(v),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret; the value is read from --value or the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretSet(cmd, v, args[0])
		},
	}

	cmd.Flags().String("value", "", "secret value (prefer stdin to keep it out of shell history)")
	cmd.Flags().Bool("validate", false, "check the value is an accepted OpenAI API key before storing it")

	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, v *viper.Viper, name string) error {
	value, _ := cmd.Flags().GetString("value")
	if value == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return lexiaerr.Errorf(lexiaerr.CodeCLIInputInvalid, "reading secret value from stdin: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return lexiaerr.New(lexiaerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if validate, _ := cmd.Flags().GetBool("validate"); validate {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		if err := keyValidator(ctx, v.GetString("openai.base_url"), value); err != nil {
			return err
		}
	}

	if err := secretStoreFactory().Set(secrets.DefaultService, name, value); err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeSecretStoreFailure, "storing secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (keyring://%s/%s)\n", name, secrets.DefaultService, name)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.DefaultService)
	if err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if lexiaerr.IsNotFound(err) {
			return lexiaerr.Errorf(lexiaerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return lexiaerr.Errorf(lexiaerr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
