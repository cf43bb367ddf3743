// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexia-dev/lexia/internal/config"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// NewRootCmd creates the root lexia command with all subcommands registered.
// Each root owns its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "lexia",
		Short:         "Lexia: forward variables and assemble prompts for OpenAI chat",
		Long:          "Lexia applies caller-supplied name/value variables, picks the OpenAI key they carry, and assembles system prompt plus history into a chat request.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd, v); err != nil {
				return err
			}
			return setupLogging(cmd.ErrOrStderr(), v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(v),
		newStatusCmd(),
		newMessagesCmd(v),
		newVarsCmd(),
		newChatCmd(v),
		newSecretCmd(v),
		newVersionCmd(),
	)

	return root
}

// initViper sets up v with defaults, env bindings, flag bindings, and an
// optional config file so precedence is flag > env > file > defaults.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return lexiaerr.Errorf(lexiaerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset so viper only matches lexia.<ext>
		// and never the bare ./lexia binary.
		v.SetConfigName("lexia")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lexia")
		v.AddConfigPath("/etc/lexia")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return lexiaerr.Errorf(lexiaerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return lexiaerr.Errorf(lexiaerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return lexiaerr.Errorf(lexiaerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	if f := flags.Lookup("log-level"); f.Changed {
		v.Set("log.level", f.Value.String())
	}

	return nil
}

// setupLogging installs the default slog handler described by log.level,
// log.format and --verbose.
func setupLogging(w io.Writer, v *viper.Viper) error {
	level, err := config.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return err
	}
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := v.GetString("log.format"); format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return lexiaerr.Errorf(lexiaerr.CodeConfigValidateInvalidValue, "log.format must be one of [text, json], got %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
