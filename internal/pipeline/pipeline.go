// Package pipeline runs a full build: manifest, target, build, stage, package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shipctl/shipctl/internal/archive"
	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/engine"
	"github.com/shipctl/shipctl/internal/logging"
	"github.com/shipctl/shipctl/internal/stage"
	"github.com/shipctl/shipctl/internal/targets"
)

// Stage names a pipeline phase in errors.
type Stage string

const (
	StageManifest Stage = "manifest"
	StageTarget   Stage = "target"
	StageBuild    Stage = "build"
	StageStage    Stage = "stage"
	StagePackage  Stage = "package"
)

// StageError wraps the first fatal error of a run with the phase it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the phase recorded in err, or "" if err carries none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Options configures a pipeline run.
type Options struct {
	// ProjectDir holds the manifest.
	ProjectDir string
	// TargetID is a target name or zero-based index. Empty selects the
	// single eligible target or asks Chooser.
	TargetID string
	// Chooser is nil when no interactive selection is possible.
	Chooser targets.Chooser
	// ArtifactDir receives the archive.
	ArtifactDir string
	// StagingDir is the parent of the per-run staging directory.
	StagingDir string
	// SkipInstall omits dependency installs.
	SkipInstall bool
	// Runner executes package-manager steps.
	Runner engine.StepRunner
	Logger *slog.Logger
}

// Result describes a successful run.
type Result struct {
	Target   targets.Entry
	Outputs  *engine.Outputs
	Artifact *archive.Artifact
}

// Run executes the pipeline. Phases run strictly in sequence and the first
// failure aborts the run; no staging directory outlives the call.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Runner == nil {
		return nil, errors.New("pipeline: step runner is required")
	}

	m, err := config.NewStore(opts.ProjectDir, logger).Load()
	if err != nil {
		return nil, &StageError{Stage: StageManifest, Err: err}
	}

	entry, err := targets.New(m).Select(opts.TargetID, opts.Chooser)
	if err != nil {
		return nil, &StageError{Stage: StageTarget, Err: err}
	}
	if !entry.Eligible {
		logger.Warn("building for a target of another provider; remote operations will be refused",
			"target", entry.Name(), "provider", entry.Target.Provider)
	}
	logger.Info("building target", "target", entry.Name(), "index", entry.Index, "deploy", entry.Target.Deploy)

	eng := engine.NewEngine(opts.Runner, logger, engine.Options{SkipInstall: opts.SkipInstall})
	outputs, err := eng.Build(ctx, opts.ProjectDir, m, entry.Target)
	if err != nil {
		return nil, &StageError{Stage: StageBuild, Err: err}
	}

	stager, err := stage.NewStager(opts.StagingDir, logger)
	if err != nil {
		return nil, &StageError{Stage: StageStage, Err: err}
	}
	stagingPath, err := stager.Stage(entry.Target, outputs)
	if err != nil {
		return nil, &StageError{Stage: StageStage, Err: err}
	}

	art, err := archive.NewPackager(opts.ArtifactDir, stager, logger).Package(stagingPath)
	if err != nil {
		return nil, &StageError{Stage: StagePackage, Err: err}
	}

	return &Result{Target: entry, Outputs: outputs, Artifact: art}, nil
}
