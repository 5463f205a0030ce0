package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoArtifacts is returned by Latest when the directory holds no artifact.
var ErrNoArtifacts = errors.New("no artifacts found")

// List returns the artifacts in dir, oldest first. A missing dir yields no artifacts.
func List(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var out []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		created, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, Artifact{
			Name:      e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			CreatedAt: created,
			Size:      info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Latest returns the newest artifact in dir.
func Latest(dir string) (Artifact, error) {
	all, err := List(dir)
	if err != nil {
		return Artifact{}, err
	}
	if len(all) == 0 {
		return Artifact{}, fmt.Errorf("%w in %s", ErrNoArtifacts, dir)
	}
	return all[len(all)-1], nil
}

// Prune deletes all but the newest keep artifacts and returns what it removed.
func Prune(dir string, keep int) ([]Artifact, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	all, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(all) <= keep {
		return nil, nil
	}
	stale := all[:len(all)-keep]
	for i, a := range stale {
		if err := os.Remove(a.Path); err != nil {
			return stale[:i], fmt.Errorf("remove %s: %w", a.Name, err)
		}
	}
	return stale, nil
}
