// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/server"
	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a single message to OpenAI",
		Long:  "Apply variables, pick the OpenAI key, assemble the prompt, and print the reply. With --address the request goes through a running lexia server instead.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, v, strings.Join(args, " "))
		},
	}

	cmd.Flags().String("vars", "", "variables file (JSON, or YAML by extension)")
	cmd.Flags().StringP("model", "m", "", "model override")
	cmd.Flags().String("system", "", "custom system message")
	cmd.Flags().String("project", "", "project system message")
	cmd.Flags().String("address", "", "send through the lexia server at host:port")

	return cmd
}

func runChat(cmd *cobra.Command, v *viper.Viper, message string) error {
	var vars variables.List
	if path, _ := cmd.Flags().GetString("vars"); path != "" {
		var err error
		if vars, err = readVariables(path); err != nil {
			return err
		}
	}

	model, _ := cmd.Flags().GetString("model")
	system, _ := cmd.Flags().GetString("system")
	project, _ := cmd.Flags().GetString("project")

	in := server.ChatInput{
		MessagesInput: server.MessagesInput{
			Message:              message,
			SystemMessage:        system,
			ProjectSystemMessage: project,
		},
		Variables: vars,
		Model:     model,
	}

	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return chatRemote(cmd, addr, in)
	}
	return chatLocal(cmd, v, in)
}

func chatLocal(cmd *cobra.Command, v *viper.Viper, in server.ChatInput) error {
	cfg, store, err := loadConfig(v)
	if err != nil {
		return err
	}
	svc, err := buildServices(cfg, store, slog.Default())
	if err != nil {
		return err
	}

	res, err := svc.Chat(cmd.Context(), in)
	if err != nil {
		return err
	}

	reportSkipped(cmd, res.Skipped)
	slog.Debug("chat complete", "request_id", res.RequestID, "model", res.Model,
		"input_tokens", res.Usage.InputTokens, "output_tokens", res.Usage.OutputTokens)

	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Response)
	return err
}

// chatRemote streams the reply from a running server's SSE endpoint.
func chatRemote(cmd *cobra.Command, addr string, in server.ChatInput) error {
	body := map[string]any{
		"message":                in.Message,
		"system_message":         in.SystemMessage,
		"project_system_message": in.ProjectSystemMessage,
		"model":                  in.Model,
		"variables":              in.Variables,
	}

	out := cmd.OutOrStdout()
	err := newServerClient(addr).postSSE(cmd.Context(), "/api/v1/chat/stream", body, func(ev sseEvent) error {
		switch provider.EventType(ev.Event) {
		case provider.EventTypeTextDelta:
			var d struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &d); err != nil {
				return lexiaerr.Errorf(lexiaerr.CodeCLIServerFailure, "invalid text event: %w", err)
			}
			_, err := fmt.Fprint(out, d.Text)
			return err
		case provider.EventTypeError:
			var d struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal([]byte(ev.Data), &d)
			return lexiaerr.New(lexiaerr.CodeProviderUpstreamFailure, d.Error)
		case "meta":
			var meta struct {
				SkippedVariables []string `json:"skipped_variables"`
			}
			_ = json.Unmarshal([]byte(ev.Data), &meta)
			reportSkipped(cmd, meta.SkippedVariables)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out)
	return err
}

func reportSkipped(cmd *cobra.Command, skipped []string) {
	for _, s := range skipped {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", s)
	}
}
