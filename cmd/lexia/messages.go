// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/server"
)

func newMessagesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Print the conversation that would be sent to OpenAI",
		Long:  "Assemble the system prompt, history, and current message from a request file and flags, and print the result as JSON. Nothing is sent.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMessages(cmd, v)
		},
	}

	cmd.Flags().StringP("file", "f", "", "request file (JSON, or YAML by extension)")
	cmd.Flags().String("message", "", "current user message")
	cmd.Flags().String("system", "", "custom system message")
	cmd.Flags().String("project", "", "project system message")

	return cmd
}

func runMessages(cmd *cobra.Command, v *viper.Viper) error {
	var req requestFile
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		if err := decodeFile(path, &req); err != nil {
			return err
		}
	}
	flagOverride(cmd, "message", &req.Message)
	flagOverride(cmd, "system", &req.SystemMessage)
	flagOverride(cmd, "project", &req.ProjectSystemMessage)

	cfg, store, err := loadConfig(v)
	if err != nil {
		return err
	}
	svc, err := buildServices(cfg, store, slog.Default())
	if err != nil {
		return err
	}

	sys, msgs := svc.Messages(server.MessagesInput{
		Message:              req.Message,
		History:              req.ConversationHistory,
		SystemMessage:        req.SystemMessage,
		ProjectSystemMessage: req.ProjectSystemMessage,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		SystemPrompt string             `json:"system_prompt"`
		Messages     []provider.Message `json:"messages"`
	}{sys, msgs})
}

// flagOverride replaces *dst with the flag's value when the flag was set.
func flagOverride(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}
