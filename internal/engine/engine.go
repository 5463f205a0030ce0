// Package engine contains the build orchestration for a deployment target:
// it decides which subsystems to build, checks their language contracts and
// runs the package-manager steps in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/hooks"
	"github.com/shipctl/shipctl/internal/logging"
)

// Language-contract and subprocess failures. All of them are fatal.
var (
	ErrBackendMissing              = errors.New("backend directory missing")
	ErrUnsupportedContractLanguage = errors.New("unsupported contract language")
	ErrMissingCompileStep          = errors.New("missing compile step")
	ErrMissingBuildStep            = errors.New("missing build step")
	ErrInstallFailed               = errors.New("dependency install failed")
	ErrBackendCompileFailed        = errors.New("backend compile failed")
	ErrBackendBuildFailed          = errors.New("backend build failed")
	ErrFrontendLanguageUnset       = errors.New("frontend language unset")
	ErrUnsupportedFrontendLanguage = errors.New("unsupported frontend language")
	ErrFrontendMissing             = errors.New("frontend directory missing")
	ErrHTMLEntryMissing            = errors.New("html entry point missing")
	ErrReactBuildFailed            = errors.New("react build failed")
	ErrReactOutputMissing          = errors.New("react build output missing")
)

const (
	stepInstall = "install"
	stepCompile = "compile"
	stepBuild   = "build"
)

// StepRunner is the package-manager contract the engine depends on.
// *hooks.Executor satisfies it.
type StepRunner interface {
	DeclaredSteps(dir string) (hooks.Scripts, error)
	Install(ctx context.Context, dir string) error
	Run(ctx context.Context, dir, step string) error
}

// Options tunes a build.
type Options struct {
	// SkipInstall omits the dependency install before a subsystem's steps.
	SkipInstall bool
}

// Engine builds the subsystems selected by a target.
type Engine struct {
	runner StepRunner
	logger *slog.Logger
	opts   Options
}

// NewEngine constructs an Engine.
func NewEngine(runner StepRunner, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{runner: runner, logger: logger, opts: opts}
}

// BackendOutput describes a built backend.
type BackendOutput struct {
	// SourceDir is the backend directory; it is shipped whole.
	SourceDir string
	// Compiled reports whether the compile step ran.
	Compiled bool
	// Built reports whether the build step ran.
	Built bool
}

// FrontendOutput describes a built frontend.
type FrontendOutput struct {
	// Language is the declared frontend language.
	Language string
	// SourceDir is the frontend source directory.
	SourceDir string
	// ShipDir is the directory whose contents become frontend/ in the artifact.
	ShipDir string
}

// Outputs is the result of a successful build.
type Outputs struct {
	ProjectDir string
	// Backend is nil when the target does not deploy the backend.
	Backend *BackendOutput
	// Frontend is nil when the target does not deploy the frontend.
	Frontend *FrontendOutput
}

// Build plans and executes the build for target. Every static check runs
// before the first subprocess; the first failing step aborts the build.
func (e *Engine) Build(ctx context.Context, projectDir string, m *config.Manifest, target config.Target) (*Outputs, error) {
	plan, err := e.Plan(projectDir, m, target)
	if err != nil {
		return nil, err
	}
	if err := e.Execute(ctx, plan); err != nil {
		return nil, err
	}
	return plan.Outputs, nil
}

// Execute runs the planned steps strictly in order and verifies the outputs they must produce.
func (e *Engine) Execute(ctx context.Context, plan *Plan) error {
	for _, s := range plan.Steps {
		e.logger.Info("build step", "subsystem", s.Subsystem, "step", s.Name, "dir", s.Dir)
		var err error
		if s.Name == stepInstall {
			err = e.runner.Install(ctx, s.Dir)
		} else {
			err = e.runner.Run(ctx, s.Dir, s.Name)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", s.failure, err)
		}
	}

	if fe := plan.Outputs.Frontend; fe != nil && fe.Language == config.FrontendReact {
		if !isDir(fe.ShipDir) {
			return fmt.Errorf("%w: %s does not exist after build", ErrReactOutputMissing, fe.ShipDir)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func relOrAbs(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
