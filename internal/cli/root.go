// Package cli defines the command-line interface for shipctl.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	ProjectDir   string
	SettingsPath string
	LogLevel     logging.Level

	// Settings is loaded once per invocation before any command runs.
	Settings *config.Settings
	// Env holds SHIPCTL_* values.
	Env baseEnv
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootCmd := newRootCommand(&Options{LogLevel: logging.LevelInfo}, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shipctl",
		Short:         "shipctl builds and ships deployment artifacts",
		Long:          "shipctl builds the backend and frontend of a project described by deployment-info.json, packages them into a single archive and uploads it to the control plane.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseEnv(&opts.Env); err != nil {
				return err
			}
			if opts.SettingsPath == "" {
				if p, err := config.DefaultSettingsPath(); err == nil {
					opts.SettingsPath = p
				}
			}
			settings, err := config.LoadSettings(opts.SettingsPath)
			if err != nil {
				return err
			}
			opts.Settings = settings

			levelFlag := cmd.Flag("log-level").Value.String()
			opts.LogLevel = logging.ParseLevel(firstSet(cmd.Flags().Changed("log-level"), levelFlag, opts.Env.LogLevel, settings.LogLevel, levelFlag))
			if !cmd.Flags().Changed("project-dir") && opts.Env.ProjectDir != "" {
				opts.ProjectDir = opts.Env.ProjectDir
			}

			logger = logging.NewLogger(cmd.ErrOrStderr(), opts.LogLevel)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", opts.LogLevel, "settings", opts.SettingsPath)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ProjectDir, "project-dir", "C", ".", "Project root containing "+config.ManifestFileName)
	cmd.PersistentFlags().StringVar(&opts.SettingsPath, "settings", "", "Path to the user settings file (default $XDG_CONFIG_HOME/shipctl/config.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newBuildCommand(opts),
		newDeployCommand(opts),
		newInitCommand(opts),
		newTargetsCommand(opts),
		newArtifactsCommand(opts),
		newDoctorCommand(opts),
		newVersionCommand(),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
