// Package hooks runs package-manager steps (dependency install and named
// scripts) in a project subdirectory.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/shipctl/shipctl/internal/env"
	"github.com/shipctl/shipctl/internal/logging"
)

// DefaultPackageManager is used when no package manager is configured.
const DefaultPackageManager = "npm"

// ErrUnsupportedPackageManager indicates a package manager this executor cannot drive.
var ErrUnsupportedPackageManager = errors.New("unsupported package manager")

var supportedManagers = map[string]struct{}{
	"npm":  {},
	"yarn": {},
	"pnpm": {},
}

// Options configures an Executor.
type Options struct {
	// PackageManager is npm, yarn or pnpm. Empty means DefaultPackageManager.
	PackageManager string
	// InstallCommand replaces "<pm> install" when set; it is split like a shell would.
	InstallCommand string
	// Env is the complete environment of every step. Nil inherits the process environment.
	Env env.Vars
	// Logger receives step lifecycle records and forwarded output.
	Logger *slog.Logger
}

// Executor runs steps one at a time. A launched step is never interrupted:
// the executor waits for the process to exit and inspects only its exit status.
type Executor struct {
	manager     string
	installArgv []string
	env         []string
	logger      *slog.Logger
}

// StepError reports a step that could not start or exited non-zero.
type StepError struct {
	// Step is the script name, or "install".
	Step string
	// Dir is the working directory.
	Dir string
	// Command is the argv that was executed.
	Command []string
	// ExitCode is the process exit status, or -1 when the process did not start.
	ExitCode int
	// Err is the underlying exec error.
	Err error
}

func (e *StepError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("step %q in %s could not start: %v", e.Step, e.Dir, e.Err)
	}
	return fmt.Sprintf("step %q in %s exited with code %d", e.Step, e.Dir, e.ExitCode)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewExecutor validates opts and constructs an Executor.
func NewExecutor(opts Options) (*Executor, error) {
	manager := strings.ToLower(strings.TrimSpace(opts.PackageManager))
	if manager == "" {
		manager = DefaultPackageManager
	}
	if _, ok := supportedManagers[manager]; !ok {
		return nil, fmt.Errorf("%w: %q (expected npm, yarn or pnpm)", ErrUnsupportedPackageManager, manager)
	}

	installArgv := []string{manager, "install"}
	if raw := strings.TrimSpace(opts.InstallCommand); raw != "" {
		argv, err := shellwords.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse install command: %w", err)
		}
		if len(argv) == 0 {
			return nil, errors.New("install command must contain at least one argument")
		}
		installArgv = argv
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var envList []string
	if opts.Env != nil {
		envList = opts.Env.List()
	}

	return &Executor{
		manager:     manager,
		installArgv: installArgv,
		env:         envList,
		logger:      logger,
	}, nil
}

// PackageManager returns the configured package manager binary.
func (e *Executor) PackageManager() string {
	return e.manager
}

// Install installs the declared dependencies of the package in dir.
func (e *Executor) Install(ctx context.Context, dir string) error {
	return e.exec(ctx, dir, "install", e.installArgv)
}

// Run runs the named script of the package in dir.
func (e *Executor) Run(ctx context.Context, dir, step string) error {
	if strings.TrimSpace(step) == "" {
		return errors.New("step name is empty")
	}
	return e.exec(ctx, dir, step, []string{e.manager, "run", step})
}

func (e *Executor) exec(ctx context.Context, dir, step string, argv []string) error {
	// Cancellation is honoured between steps only.
	if err := ctx.Err(); err != nil {
		return &StepError{Step: step, Dir: dir, Command: argv, ExitCode: -1, Err: err}
	}

	e.logger.Info("running step", "step", step, "dir", dir, "command", strings.Join(argv, " "))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	if e.env != nil {
		cmd.Env = e.env
	}
	stdout := logging.NewWriter(e.logger, "step", step, "stream", "stdout")
	stderr := logging.NewWriter(e.logger, "step", step, "stream", "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		return newStepError(step, dir, argv, err)
	}
	e.logger.Debug("step finished", "step", step, "dir", dir)
	return nil
}

func newStepError(step, dir string, argv []string, err error) *StepError {
	se := &StepError{Step: step, Dir: dir, Command: argv, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		se.ExitCode = exitErr.ExitCode()
	}
	return se
}
