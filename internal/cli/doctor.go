package cli

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/engine"
	"github.com/shipctl/shipctl/internal/hooks"
	"github.com/shipctl/shipctl/internal/targets"
)

// newDoctorCommand creates the "doctor" subcommand that runs preflight checks without building.
func newDoctorCommand(opts *Options) *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "doctor [target]",
		Short: "Check the manifest, tools and build plan of every target without running any step",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			projectDir, err := resolveProjectDir(opts)
			if err != nil {
				return err
			}
			applyBuildDefaults(cmd, opts, &f)

			m, err := config.NewStore(projectDir, logger).Load()
			if err != nil {
				return err
			}
			logger.Info("doctor check ok", "check", "manifest")

			executor, err := hooks.NewExecutor(hooks.Options{
				PackageManager: f.packageManager,
				InstallCommand: f.installCommand,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			var fatalErrs []error
			if _, err := exec.LookPath(executor.PackageManager()); err != nil {
				logger.Error("doctor check failed: package manager not in PATH", "tool", executor.PackageManager(), "error", err)
				fatalErrs = append(fatalErrs, fmt.Errorf("%s not found in PATH", executor.PackageManager()))
			} else {
				logger.Info("doctor check ok", "tool", executor.PackageManager())
			}

			reg := targets.New(m)
			entries := reg.All()
			if id := targetArg(opts, args); id != "" {
				e, err := reg.Resolve(id)
				if err != nil {
					return err
				}
				entries = []targets.Entry{e}
			}

			eng := engine.NewEngine(executor, logger, engine.Options{SkipInstall: f.skipInstall})
			for _, e := range entries {
				plan, err := eng.Plan(projectDir, m, e.Target)
				if err != nil {
					logger.Error("doctor check failed: build plan", "target", e.Name(), "error", err)
					fatalErrs = append(fatalErrs, fmt.Errorf("target %q: %w", e.Name(), err))
					continue
				}
				steps := make([]string, 0, len(plan.Steps))
				for _, s := range plan.Steps {
					steps = append(steps, string(s.Subsystem)+":"+s.Name)
				}
				logger.Info("doctor check ok", "target", e.Name(), "steps", steps)
				if err := targets.RequireRemote(e); err != nil {
					logger.Warn("target cannot be deployed", "target", e.Name(), "reason", err)
				}
			}

			if len(fatalErrs) > 0 {
				return errors.Join(fatalErrs...)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), FormatCheckmark(fmt.Sprintf("%d target(s) ready to build", len(entries))))
			return err
		},
	}

	cmd.Flags().StringVar(&f.packageManager, "package-manager", "", "Package manager that runs install and steps (npm, yarn, pnpm)")
	cmd.Flags().StringVar(&f.installCommand, "install-command", "", "Command line replacing the package manager's install")
	cmd.Flags().BoolVar(&f.skipInstall, "skip-install", false, "Plan without dependency installs")
	return cmd
}
