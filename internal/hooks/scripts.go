package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PackageFile is the package descriptor read to discover declared steps.
const PackageFile = "package.json"

// Scripts maps declared step names to their command lines.
type Scripts map[string]string

// Has reports whether step is declared.
func (s Scripts) Has(step string) bool {
	_, ok := s[step]
	return ok
}

// DeclaredSteps reads the scripts declared in dir/package.json.
// A directory without package.json declares no steps.
func (e *Executor) DeclaredSteps(dir string) (Scripts, error) {
	return ReadScripts(dir)
}

// ReadScripts reads the "scripts" object of dir/package.json.
func ReadScripts(dir string) (Scripts, error) {
	path := filepath.Join(dir, PackageFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Scripts{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if pkg.Scripts == nil {
		return Scripts{}, nil
	}
	return Scripts(pkg.Scripts), nil
}
