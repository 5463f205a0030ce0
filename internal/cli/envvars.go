package cli

import (
	"os"
	"strings"

	envparse "github.com/caarlos0/env/v11"
)

// baseEnv defines CLI defaults sourced from SHIPCTL_* env vars.
type baseEnv struct {
	// ProjectDir is the project root from SHIPCTL_PROJECT_DIR.
	ProjectDir string `env:"SHIPCTL_PROJECT_DIR"`
	// LogLevel is the logging level from SHIPCTL_LOG_LEVEL.
	LogLevel string `env:"SHIPCTL_LOG_LEVEL"`
	// Target is the default target identifier from SHIPCTL_TARGET.
	Target string `env:"SHIPCTL_TARGET"`
	// PackageManager selects npm, yarn or pnpm from SHIPCTL_PACKAGE_MANAGER.
	PackageManager string `env:"SHIPCTL_PACKAGE_MANAGER"`
	// InstallCommand overrides the install command line from SHIPCTL_INSTALL_COMMAND.
	InstallCommand string `env:"SHIPCTL_INSTALL_COMMAND"`
	// ArtifactDir is the artifact directory from SHIPCTL_ARTIFACT_DIR.
	ArtifactDir string `env:"SHIPCTL_ARTIFACT_DIR"`
	// StagingDir is the staging root from SHIPCTL_STAGING_DIR.
	StagingDir string `env:"SHIPCTL_STAGING_DIR"`
	// SkipInstall disables dependency installs from SHIPCTL_SKIP_INSTALL.
	SkipInstall bool `env:"SHIPCTL_SKIP_INSTALL"`
	// Token is the control-plane token from SHIPCTL_TOKEN.
	Token string `env:"SHIPCTL_TOKEN"`
}

// parseEnv fills target from SHIPCTL_* env vars via caarlos0/env.
func parseEnv(target any) error {
	return envparse.Parse(target)
}

// envPresent reports whether a non-empty env var exists.
func envPresent(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	return strings.TrimSpace(val) != ""
}

// firstSet applies flag > env > settings > default precedence. The flag
// value wins only when the user actually passed it.
func firstSet(flagChanged bool, flagValue string, rest ...string) string {
	if flagChanged {
		return flagValue
	}
	for _, v := range rest {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
