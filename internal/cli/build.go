package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/ghoutput"
	"github.com/shipctl/shipctl/internal/pipeline"
	"github.com/shipctl/shipctl/internal/targets"
)

// newBuildCommand creates the "build" subcommand that produces a deployment archive.
func newBuildCommand(opts *Options) *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build [target]",
		Short: "Build the selected target and package it into an archive",
		Long: "Build runs the backend and frontend steps the target deploys, stages the results " +
			"and writes a deployment-<millis>.tar.gz archive. The target is a name or a zero-based index.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runBuild(cmd, opts, &f, targetArg(opts, args))
			if err != nil {
				return err
			}
			if err := ghoutput.Write(map[string]string{
				"artifact": res.Artifact.Path,
				"target":   res.Target.Name(),
			}); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Artifact.Path)
			return err
		},
	}

	addBuildFlags(cmd, &f)
	return cmd
}

// runBuild resolves configuration and runs the pipeline for targetID.
func runBuild(cmd *cobra.Command, opts *Options, f *buildFlags, targetID string) (*pipeline.Result, error) {
	logger := LoggerFromContext(cmd.Context())

	projectDir, err := resolveProjectDir(opts)
	if err != nil {
		return nil, err
	}
	applyBuildDefaults(cmd, opts, f)

	executor, err := newStepExecutor(projectDir, f, logger)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(cmd.Context(), pipeline.Options{
		ProjectDir:  projectDir,
		TargetID:    targetID,
		Chooser:     targets.NewPromptChooser(cmd.InOrStdin(), cmd.ErrOrStderr()),
		ArtifactDir: resolveArtifactDir(cmd, opts, projectDir),
		StagingDir:  config.ResolveDir(projectDir, f.stagingDir, ""),
		SkipInstall: f.skipInstall,
		Runner:      executor,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("build complete", "target", res.Target.Name(), "artifact", res.Artifact.Path)
	return res, nil
}
