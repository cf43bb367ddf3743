// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/lexia-dev/lexia/internal/config"
	"github.com/lexia-dev/lexia/internal/prompt"
	"github.com/lexia-dev/lexia/internal/provider"
	openaiprov "github.com/lexia-dev/lexia/internal/provider/openai"
	"github.com/lexia-dev/lexia/internal/secrets"
	"github.com/lexia-dev/lexia/internal/server"
	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// loadConfig decodes the configuration held by v, resolving keyring://
// values through the secret store.
func loadConfig(v *viper.Viper) (*config.Config, secrets.Store, error) {
	store := secretStoreFactory()

	cfg, err := config.FromViper(v, store)
	if err != nil {
		return nil, nil, err
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	return cfg, store, nil
}

// buildServices wires the resolver, prompt sources, health tracking, and
// the OpenAI provider factory described by cfg.
func buildServices(cfg *config.Config, store secrets.Store, logger *slog.Logger) (*server.Services, error) {
	model := cfg.OpenAI.Model

	var project string
	if cfg.Prompt.ProjectFile != "" {
		p, err := prompt.LoadProject(cfg.Prompt.ProjectFile)
		if err != nil {
			return nil, err
		}
		project = p.SystemMessage
		if p.Model != "" {
			model = p.Model
		}
		logger.Debug("loaded project prompt", "path", cfg.Prompt.ProjectFile, "model", model)
	}

	var resolver *variables.Resolver
	if cfg.Variables.Store == config.StoreProcess {
		resolver = variables.New(variables.OSEnv{},
			variables.WithLogger(logger),
			variables.WithSecrets(store),
		)
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, lexiaerr.Wrap(err, lexiaerr.CodeCLISetupFailure, "creating health tracker")
	}

	var fallback string
	if cfg.HasOpenAIKey() {
		fallback = cfg.OpenAI.APIKey
	}

	return server.NewServices(server.ServicesConfig{
		Providers:            openAIFactory(cfg),
		Resolver:             resolver,
		Secrets:              store,
		Health:               health,
		Logger:               logger,
		FallbackAPIKey:       fallback,
		DefaultModel:         model,
		SystemMessage:        cfg.Prompt.SystemMessage,
		ProjectSystemMessage: project,
	})
}

func openAIFactory(cfg *config.Config) server.ProviderFactory {
	return func(apiKey string) (provider.Provider, error) {
		p, err := openaiprov.New(openaiprov.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
