// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexia-dev/lexia/internal/provider"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running lexia server",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8080", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body struct {
		Status   string                  `json:"status"`
		Provider *provider.HealthMetrics `json:"provider"`
	}
	if err := newServerClient(addr).getJSON(cmd.Context(), "/health", &body); err != nil {
		if lexiaerr.HasCode(err, lexiaerr.CodeCLIServerUnavailable) {
			_, _ = fmt.Fprintf(out, "lexia at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "lexia at %s: %s\n", addr, body.Status)
	if p := body.Provider; p != nil {
		_, _ = fmt.Fprintf(out, "  provider available: %t (successes: %d, failures: %d)\n",
			p.Available, p.SuccessCount, p.FailureCount)
	}
	return nil
}
