// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package server

import (
	"log/slog"
	"sync"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/secrets"
	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// ProviderFactory builds a provider bound to one API key. It is called once
// per chat because the key may differ between requests.
type ProviderFactory func(apiKey string) (provider.Provider, error)

// ServicesConfig wires the dependencies used by message and chat handlers.
type ServicesConfig struct {
	// Providers is required.
	Providers ProviderFactory
	// Resolver applies request variables to a shared store. When nil every
	// request gets its own isolated store.
	Resolver *variables.Resolver
	// Secrets resolves keyring:// variable values. Optional.
	Secrets secrets.Store
	// Health records upstream outcomes. Optional.
	Health *provider.HealthTracker
	Logger *slog.Logger

	FallbackAPIKey       string
	DefaultModel         string
	SystemMessage        string
	ProjectSystemMessage string
}

// Services holds dependencies injected into route handlers.
type Services struct {
	providers ProviderFactory
	resolver  *variables.Resolver
	secrets   secrets.Store
	health    *provider.HealthTracker
	logger    *slog.Logger

	fallbackKey   string
	model         string
	systemMessage string
	projectPrompt string

	// Applying variables and reading the key back must not interleave
	// between requests sharing a store.
	applyMu sync.Mutex
}

// NewServices validates cfg and returns the handler dependencies.
func NewServices(cfg ServicesConfig) (*Services, error) {
	if cfg.Providers == nil {
		return nil, lexiaerr.New(lexiaerr.CodeServerConfigInvalid, "provider factory is required")
	}
	if cfg.DefaultModel == "" {
		return nil, lexiaerr.New(lexiaerr.CodeServerConfigInvalid, "default model is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Services{
		providers:     cfg.Providers,
		resolver:      cfg.Resolver,
		secrets:       cfg.Secrets,
		health:        cfg.Health,
		logger:        logger,
		fallbackKey:   cfg.FallbackAPIKey,
		model:         cfg.DefaultModel,
		systemMessage: cfg.SystemMessage,
		projectPrompt: cfg.ProjectSystemMessage,
	}, nil
}

// RegisterServices sets the service dependencies and registers the API routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerSSERoute()
}

func (s *Services) resolverFor() *variables.Resolver {
	if s.resolver != nil {
		return s.resolver
	}
	opts := []variables.Option{variables.WithLogger(s.logger)}
	if s.secrets != nil {
		opts = append(opts, variables.WithSecrets(s.secrets))
	}
	return variables.New(variables.NewMapStore(), opts...)
}
