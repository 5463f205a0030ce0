// Package stage assembles the exact file set that goes into a deployment archive.
package stage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/engine"
	"github.com/shipctl/shipctl/internal/logging"
)

// DirPrefix prefixes every staging directory name.
const DirPrefix = "shipctl-staging-"

var (
	// ErrSourceMissing is returned when a path that must be staged does not exist.
	ErrSourceMissing = errors.New("staging source missing")
	// ErrStagingInsideSource is returned when the staging root lies in a directory that gets copied.
	ErrStagingInsideSource = errors.New("staging root inside a staged source")
)

// LockFiles are the top-level dependency lock files shipped when present.
var LockFiles = []string{
	"package-lock.json",
	"npm-shrinkwrap.json",
	"yarn.lock",
	"pnpm-lock.yaml",
}

// Stager owns staging directories under a common root.
type Stager struct {
	root   string
	logger *slog.Logger
}

// NewStager ensures the staging root exists. An empty root means the OS temp directory.
func NewStager(root string, logger *slog.Logger) (*Stager, error) {
	if root == "" {
		root = os.TempDir()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve staging root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Stager{root: abs, logger: logger}, nil
}

// Root returns the directory staging directories are created in.
func (s *Stager) Root() string {
	return s.root
}

// Stage creates a fresh staging directory and copies into it the manifest,
// any lock files and the subsystems target deploys. On error the partially
// populated directory is removed before returning.
func (s *Stager) Stage(target config.Target, out *engine.Outputs) (path string, err error) {
	if out == nil {
		return "", errors.New("stage: build outputs are required")
	}

	var sources []string
	if target.Deploys(config.SubsystemBackend) && out.Backend != nil {
		sources = append(sources, out.Backend.SourceDir)
	}
	if target.Deploys(config.SubsystemFrontend) && out.Frontend != nil {
		sources = append(sources, out.Frontend.ShipDir)
	}
	if err := s.checkOutside(sources); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, DirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err != nil {
			if cerr := s.Cleanup(dir); cerr != nil {
				s.logger.Warn("staging cleanup failed", "dir", dir, "error", cerr)
			}
		}
	}()
	s.logger.Debug("staging", "dir", dir, "target", target.Name)

	manifest := filepath.Join(out.ProjectDir, config.ManifestFileName)
	if err := requireExists(manifest); err != nil {
		return "", err
	}
	if err := copyFile(manifest, filepath.Join(dir, config.ManifestFileName)); err != nil {
		return "", err
	}

	for _, name := range LockFiles {
		src := filepath.Join(out.ProjectDir, name)
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return "", err
		}
	}

	if target.Deploys(config.SubsystemBackend) {
		if out.Backend == nil {
			return "", fmt.Errorf("%w: no backend build for target %q", ErrSourceMissing, target.Name)
		}
		if err := copySubtree(out.Backend.SourceDir, filepath.Join(dir, config.BackendDir)); err != nil {
			return "", err
		}
	}

	if target.Deploys(config.SubsystemFrontend) {
		if out.Frontend == nil {
			return "", fmt.Errorf("%w: no frontend build for target %q", ErrSourceMissing, target.Name)
		}
		if err := copySubtree(out.Frontend.ShipDir, filepath.Join(dir, config.DefaultFrontendDir)); err != nil {
			return "", err
		}
	}

	return dir, nil
}

// Cleanup removes a staging directory. Paths outside the staging root are refused.
func (s *Stager) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if !config.IsWithin(s.root, path) {
		return fmt.Errorf("refusing to remove %q outside staging root %q", path, s.root)
	}
	return os.RemoveAll(path)
}

// checkOutside refuses a staging root that would be copied into itself.
func (s *Stager) checkOutside(sources []string) error {
	root := resolvePath(s.root)
	for _, src := range sources {
		resolved := resolvePath(src)
		if resolved == root || config.IsWithin(resolved, root) {
			return fmt.Errorf("%w: staging root %s is inside %s; choose a staging dir outside the project sources",
				ErrStagingInsideSource, s.root, src)
		}
	}
	return nil
}

// copySubtree copies the contents of src. A symlinked src is followed;
// links below it are recreated as links.
func copySubtree(src, dst string) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	return copyTree(resolved, dst)
}

func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func requireExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return err
	}
	return nil
}
