// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexia-dev/lexia/internal/server"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lexia HTTP API",
		Long:  "Load configuration, wire the variable resolver and OpenAI provider, and serve the HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = v.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	cfg, store, err := loadConfig(v)
	if err != nil {
		return err
	}

	logger := slog.Default()
	svc, err := buildServices(cfg, store, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		return lexiaerr.Wrap(err, lexiaerr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(svc)

	if !cfg.HasOpenAIKey() {
		logger.Warn("no openai.api_key configured; chat requests must carry an OPENAI_API_KEY variable")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("lexia listening",
		"addr", cfg.Server.Listen,
		"variables_store", cfg.Variables.Store,
		"model", cfg.OpenAI.Model,
	)
	return srv.Start(ctx)
}
