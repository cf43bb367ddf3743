// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

// Command openapi-gen writes the OpenAPI document of the lexia HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/server"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

const defaultOutPath = "api/openapi/spec.json"

func main() {
	outPath := defaultOutPath
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := writeSpec(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

func writeSpec(outPath string) error {
	spec, err := generateSpec()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLISetupFailure, "creating output dir: %w", err)
	}
	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLISetupFailure, "writing spec: %w", err)
	}
	return nil
}

// generateSpec builds a server with every route registered and returns the
// OpenAPI document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, lexiaerr.Errorf(lexiaerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	// Handlers never run during generation, so the factory is never called.
	svc, err := server.NewServices(server.ServicesConfig{
		Providers:    func(string) (provider.Provider, error) { return nil, nil },
		DefaultModel: "gpt-4.1-mini",
	})
	if err != nil {
		return nil, lexiaerr.Errorf(lexiaerr.CodeCLISetupFailure, "creating services: %w", err)
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
