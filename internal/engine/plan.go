package engine

import (
	"fmt"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/hooks"
)

// Step is one planned package-manager invocation.
type Step struct {
	Subsystem config.Subsystem
	// Name is "install" or a declared script name.
	Name string
	Dir  string

	failure error
}

// Plan is the ordered list of steps for one build and the outputs it will produce.
type Plan struct {
	Steps   []Step
	Outputs *Outputs
}

// Plan validates the language contracts for target and returns the steps to
// run. It launches no subprocess.
func (e *Engine) Plan(projectDir string, m *config.Manifest, target config.Target) (*Plan, error) {
	if m.HasContracts() && m.ContractLanguage() != config.ContractLanguageSCrypt {
		return nil, fmt.Errorf("%w: %q (supported: %q)", ErrUnsupportedContractLanguage, m.ContractLanguage(), config.ContractLanguageSCrypt)
	}

	plan := &Plan{Outputs: &Outputs{ProjectDir: projectDir}}

	if target.Deploys(config.SubsystemBackend) {
		if err := e.planBackend(plan, projectDir, m); err != nil {
			return nil, err
		}
	}
	if target.Deploys(config.SubsystemFrontend) {
		if err := e.planFrontend(plan, projectDir, m); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("build planned", "target", target.Name, "steps", len(plan.Steps))
	return plan, nil
}

func (e *Engine) planBackend(plan *Plan, projectDir string, m *config.Manifest) error {
	dir := relOrAbs(projectDir, config.BackendDir)
	if !isDir(dir) {
		return fmt.Errorf("%w: %s", ErrBackendMissing, dir)
	}
	scripts, err := e.runner.DeclaredSteps(dir)
	if err != nil {
		return fmt.Errorf("read backend steps: %w", err)
	}

	out := &BackendOutput{SourceDir: dir}
	plan.Outputs.Backend = out

	var steps []Step
	if m.HasContracts() {
		if !scripts.Has(stepCompile) {
			return fmt.Errorf("%w: %s declares no %q script", ErrMissingCompileStep, dir, stepCompile)
		}
		if !scripts.Has(stepBuild) {
			return fmt.Errorf("%w: %s declares no %q script", ErrMissingBuildStep, dir, stepBuild)
		}
		steps = append(steps,
			Step{Subsystem: config.SubsystemBackend, Name: stepCompile, Dir: dir, failure: ErrBackendCompileFailed},
			Step{Subsystem: config.SubsystemBackend, Name: stepBuild, Dir: dir, failure: ErrBackendBuildFailed},
		)
		out.Compiled, out.Built = true, true
	} else if scripts.Has(stepBuild) {
		steps = append(steps, Step{Subsystem: config.SubsystemBackend, Name: stepBuild, Dir: dir, failure: ErrBackendBuildFailed})
		out.Built = true
	}

	plan.Steps = append(plan.Steps, e.withInstall(config.SubsystemBackend, dir, steps)...)
	return nil
}

func (e *Engine) planFrontend(plan *Plan, projectDir string, m *config.Manifest) error {
	lang := m.FrontendLanguage()
	if lang == "" {
		return ErrFrontendLanguageUnset
	}
	dir := relOrAbs(projectDir, m.FrontendDir())

	switch lang {
	case config.FrontendHTML:
		entry := relOrAbs(dir, config.HTMLEntryFile)
		if !isFile(entry) {
			return fmt.Errorf("%w: %s", ErrHTMLEntryMissing, entry)
		}
		plan.Outputs.Frontend = &FrontendOutput{Language: lang, SourceDir: dir, ShipDir: dir}
		return nil

	case config.FrontendReact:
		if !isDir(dir) {
			return fmt.Errorf("%w: %s", ErrFrontendMissing, dir)
		}
		scripts, err := e.runner.DeclaredSteps(dir)
		if err != nil {
			return fmt.Errorf("read frontend steps: %w", err)
		}
		if !scripts.Has(stepBuild) {
			return fmt.Errorf("%w: %s declares no %q script", ErrMissingBuildStep, dir, stepBuild)
		}
		plan.Outputs.Frontend = &FrontendOutput{
			Language:  lang,
			SourceDir: dir,
			ShipDir:   relOrAbs(dir, config.ReactOutputDir),
		}
		steps := []Step{{Subsystem: config.SubsystemFrontend, Name: stepBuild, Dir: dir, failure: ErrReactBuildFailed}}
		plan.Steps = append(plan.Steps, e.withInstall(config.SubsystemFrontend, dir, steps)...)
		return nil

	default:
		return fmt.Errorf("%w: %q (supported: %q, %q)", ErrUnsupportedFrontendLanguage, lang, config.FrontendReact, config.FrontendHTML)
	}
}

// withInstall prefixes steps with a dependency install unless there is nothing to run.
func (e *Engine) withInstall(subsystem config.Subsystem, dir string, steps []Step) []Step {
	if len(steps) == 0 || e.opts.SkipInstall {
		return steps
	}
	install := Step{Subsystem: subsystem, Name: stepInstall, Dir: dir, failure: ErrInstallFailed}
	return append([]Step{install}, steps...)
}

var _ StepRunner = (*hooks.Executor)(nil)
