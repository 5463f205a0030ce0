package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shipctl/shipctl/internal/logging"
)

// Store reads and writes the manifest of one project root.
// Concurrent invocations against the same root are not coordinated.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore constructs a Store for the project rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the project root.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, ManifestFileName)
}

// Exists reports whether the manifest file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && !info.IsDir()
}

// Load reads and validates the manifest.
//
// Load is not read-only: when the file still uses the legacy "deployments"
// key, it is renamed to "configs" and the file is rewritten before Load
// returns. The rewrite happens at most once; later loads find nothing to
// migrate and leave the file untouched.
func (s *Store) Load() (*Manifest, error) {
	path := s.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrManifestInvalid, path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrManifestInvalid, path)
	}

	var kind string
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &kind); err != nil {
			return nil, fmt.Errorf("%w: type field: %v", ErrManifestInvalid, err)
		}
	}
	if kind != ProjectKind {
		return nil, fmt.Errorf("%w: type is %q, expected %q", ErrManifestInvalid, kind, ProjectKind)
	}

	if migrateLegacyTargets(raw) {
		migrated, err := encodeIndented(raw)
		if err != nil {
			return nil, fmt.Errorf("encode migrated manifest: %w", err)
		}
		if err := writeFileAtomic(path, migrated); err != nil {
			return nil, fmt.Errorf("persist migrated manifest: %w", err)
		}
		s.logger.Info("migrated manifest", "path", path, "from", legacyTargetsKey, "to", targetsKey)
		data = migrated
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrManifestInvalid, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s.logger.Debug("manifest loaded", "path", path, "targets", len(m.Targets))
	return &m, nil
}

// Save overwrites the manifest file with m.
func (s *Store) Save(m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Targets == nil {
		m.Targets = []Target{}
	}
	data, err := encodeIndented(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileAtomic(s.Path(), data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	s.logger.Debug("manifest saved", "path", s.Path())
	return nil
}

// migrateLegacyTargets renames the legacy target list key in place and
// reports whether raw changed. When both keys exist the current one wins.
func migrateLegacyTargets(raw map[string]json.RawMessage) bool {
	legacy, ok := raw[legacyTargetsKey]
	if !ok {
		return false
	}
	if _, exists := raw[targetsKey]; !exists {
		raw[targetsKey] = legacy
	}
	delete(raw, legacyTargetsKey)
	return true
}

func encodeIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
