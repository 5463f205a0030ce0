package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/env"
	"github.com/shipctl/shipctl/internal/hooks"
)

// buildFlags are shared by build and deploy.
type buildFlags struct {
	artifactDir    string
	stagingDir     string
	packageManager string
	installCommand string
	skipInstall    bool
	envInline      string
	envFiles       []string
}

func addBuildFlags(cmd *cobra.Command, f *buildFlags) {
	cmd.Flags().StringVar(&f.artifactDir, "artifact-dir", "", "Directory for archives (default "+config.DefaultArtifactDir+" under the project root)")
	cmd.Flags().StringVar(&f.stagingDir, "staging-dir", "", "Parent directory for the temporary staging directory (default OS temp dir)")
	cmd.Flags().StringVar(&f.packageManager, "package-manager", "", "Package manager that runs install and steps (npm, yarn, pnpm)")
	cmd.Flags().StringVar(&f.installCommand, "install-command", "", "Command line replacing the package manager's install")
	cmd.Flags().BoolVar(&f.skipInstall, "skip-install", false, "Do not install dependencies before running steps")
	cmd.Flags().StringVar(&f.envInline, "env", "", "Extra step environment in k=v,k2=v2 format")
	cmd.Flags().StringArrayVar(&f.envFiles, "env-file", nil, "Dotenv file merged into the step environment (repeatable)")
}

// resolveProjectDir returns the absolute project root.
func resolveProjectDir(opts *Options) (string, error) {
	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir %q: %w", dir, err)
	}
	return abs, nil
}

// resolveArtifactDir applies flag > SHIPCTL_ARTIFACT_DIR > settings > default.
func resolveArtifactDir(cmd *cobra.Command, opts *Options, projectDir string) string {
	flagVal := ""
	changed := false
	if fl := cmd.Flags().Lookup("artifact-dir"); fl != nil {
		flagVal, changed = fl.Value.String(), fl.Changed
	}
	dir := firstSet(changed, flagVal, opts.Env.ArtifactDir, opts.Settings.ArtifactDir)
	return config.ResolveDir(projectDir, dir, config.DefaultArtifactDir)
}

// applyBuildDefaults fills unset build flags from SHIPCTL_* and user settings.
// Relative directories stay relative here and are resolved against the project root.
func applyBuildDefaults(cmd *cobra.Command, opts *Options, f *buildFlags) {
	f.stagingDir = firstSet(cmd.Flags().Changed("staging-dir"), f.stagingDir, opts.Env.StagingDir, opts.Settings.StagingDir)
	f.packageManager = firstSet(cmd.Flags().Changed("package-manager"), f.packageManager, opts.Env.PackageManager, opts.Settings.PackageManager)
	f.installCommand = firstSet(cmd.Flags().Changed("install-command"), f.installCommand, opts.Env.InstallCommand, opts.Settings.InstallCommand)
	if !cmd.Flags().Changed("skip-install") && envPresent("SHIPCTL_SKIP_INSTALL") {
		f.skipInstall = opts.Env.SkipInstall
	}
}

// newStepExecutor assembles the step environment and the package-manager executor.
func newStepExecutor(projectDir string, f *buildFlags, logger *slog.Logger) (*hooks.Executor, error) {
	inline, err := env.ParseInlineVars(f.envInline)
	if err != nil {
		return nil, err
	}
	vars, err := env.BuildEnv(projectDir, f.envFiles, inline)
	if err != nil {
		return nil, err
	}
	return hooks.NewExecutor(hooks.Options{
		PackageManager: f.packageManager,
		InstallCommand: f.installCommand,
		Env:            vars,
		Logger:         logger,
	})
}
