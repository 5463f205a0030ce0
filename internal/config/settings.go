package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds user-level defaults read from $XDG_CONFIG_HOME/shipctl/config.yaml.
// Flags and SHIPCTL_* variables override every field.
type Settings struct {
	// PackageManager selects the step runner binary (npm, yarn, pnpm).
	PackageManager string `yaml:"packageManager,omitempty"`
	// InstallCommand replaces the package manager's install command line.
	InstallCommand string `yaml:"installCommand,omitempty"`
	// ArtifactDir is where archives are written; relative paths are resolved against the project root.
	ArtifactDir string `yaml:"artifactDir,omitempty"`
	// StagingDir is the parent of per-run staging directories.
	StagingDir string `yaml:"stagingDir,omitempty"`
	// Token is the control-plane access token.
	Token string `yaml:"token,omitempty"`
	// LogLevel is the default log level.
	LogLevel string `yaml:"logLevel,omitempty"`
}

// DefaultArtifactDir is the artifact directory relative to the project root.
const DefaultArtifactDir = ".shipctl/artifacts"

// DefaultSettingsPath returns the user settings file location.
func DefaultSettingsPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "shipctl", "config.yaml"), nil
}

// LoadSettings reads the settings file at path. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	if strings.TrimSpace(path) == "" {
		return &Settings{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %q: %w", path, err)
	}
	return &s, nil
}

// ResolveDir returns path when absolute, otherwise path joined to base.
// An empty path resolves to def joined to base.
func ResolveDir(base, path, def string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = def
	}
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// IsWithin reports whether path is strictly inside root.
func IsWithin(root, path string) bool {
	root = filepath.Clean(strings.TrimSpace(root))
	path = filepath.Clean(strings.TrimSpace(path))
	if root == "" || root == "." || path == "" || path == "." {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}
