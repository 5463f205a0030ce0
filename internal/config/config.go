// Package config contains the loader and strongly typed model for deployment-info.json
// together with the user-level CLI settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// ManifestFileName is the manifest file name, relative to the project root.
	ManifestFileName = "deployment-info.json"
	// ProjectKind is the sentinel value every manifest must carry in its "type" field.
	ProjectKind = "shipctl-project"
	// ProviderShipctl is the only provider tag this client can operate on remotely.
	ProviderShipctl = "shipctl"

	// ContractLanguageSCrypt is the single supported contract language.
	ContractLanguageSCrypt = "sCrypt"
	// FrontendReact marks a frontend built with a package-manager build step.
	FrontendReact = "react"
	// FrontendHTML marks a static frontend shipped as-is.
	FrontendHTML = "html"

	// BackendDir is the backend source directory relative to the project root.
	BackendDir = "backend"
	// DefaultFrontendDir is used when the manifest does not name a frontend directory.
	DefaultFrontendDir = "frontend"
	// ReactOutputDir is the build output directory inside a react frontend.
	ReactOutputDir = "build"
	// HTMLEntryFile is the entry point an html frontend must provide.
	HTMLEntryFile = "index.html"

	targetsKey       = "configs"
	legacyTargetsKey = "deployments"
)

var (
	// ErrManifestMissing indicates that no manifest exists in the project root.
	ErrManifestMissing = errors.New("manifest not found")
	// ErrManifestInvalid indicates that the manifest cannot be parsed or has the wrong shape.
	ErrManifestInvalid = errors.New("manifest invalid")
)

// Subsystem is a deployable part of a project.
type Subsystem string

const (
	// SubsystemBackend is the backend source tree under BackendDir.
	SubsystemBackend Subsystem = "backend"
	// SubsystemFrontend is the frontend described by Manifest.Frontend.
	SubsystemFrontend Subsystem = "frontend"
)

// Manifest is the declarative descriptor of a project's build and deploy shape.
type Manifest struct {
	// Kind must equal ProjectKind.
	Kind string `json:"type"`
	// Version is free-form and not interpreted.
	Version string `json:"version,omitempty"`
	// Frontend describes the optional frontend subsystem.
	Frontend *FrontendSpec `json:"frontend,omitempty"`
	// Contracts describes the optional smart contract sources built with the backend.
	Contracts *ContractsSpec `json:"contracts,omitempty"`
	// Targets lists deployment targets. Order is significant.
	Targets []Target `json:"configs"`

	// extra keeps unknown top-level keys so that Save does not drop them.
	extra map[string]json.RawMessage
}

// FrontendSpec describes how the frontend is built.
type FrontendSpec struct {
	// Language is one of FrontendReact or FrontendHTML.
	Language string `json:"language,omitempty"`
	// Directory is the frontend source directory relative to the project root.
	Directory string `json:"directory,omitempty"`
}

// ContractsSpec describes the contracts compiled as part of the backend.
type ContractsSpec struct {
	Language  string `json:"language,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// Target is one named deployment profile.
type Target struct {
	// Name identifies the target; lookups resolve duplicates to the first match.
	Name string `json:"name"`
	// Provider tags the remote runtime provider.
	Provider string `json:"provider"`
	// Network is an opaque environment/chain tag.
	Network string `json:"network,omitempty"`
	// ProjectID is the remote project identifier, required for remote operations only.
	ProjectID string `json:"projectId,omitempty"`
	// Endpoint is the control-plane base URL.
	Endpoint string `json:"endpoint,omitempty"`
	// Deploy selects which subsystems are built and packaged.
	Deploy []Subsystem `json:"deploy"`
	// FrontendHosting is passed through opaquely.
	FrontendHosting string `json:"frontendHosting,omitempty"`
}

// Deploys reports whether s is part of the target's deploy set.
func (t Target) Deploys(s Subsystem) bool {
	for _, d := range t.Deploy {
		if d == s {
			return true
		}
	}
	return false
}

// FrontendDir returns the frontend source directory relative to the project root.
func (m *Manifest) FrontendDir() string {
	if m == nil || m.Frontend == nil || strings.TrimSpace(m.Frontend.Directory) == "" {
		return DefaultFrontendDir
	}
	return strings.TrimSpace(m.Frontend.Directory)
}

// FrontendLanguage returns the declared frontend language or "".
func (m *Manifest) FrontendLanguage() string {
	if m == nil || m.Frontend == nil {
		return ""
	}
	return strings.TrimSpace(m.Frontend.Language)
}

// ContractLanguage returns the declared contract language or "" when no contracts are declared.
func (m *Manifest) ContractLanguage() string {
	if m == nil || m.Contracts == nil {
		return ""
	}
	return strings.TrimSpace(m.Contracts.Language)
}

// HasContracts reports whether the manifest declares a contracts block.
func (m *Manifest) HasContracts() bool {
	return m != nil && m.Contracts != nil
}

// Validate checks the structural invariants of a manifest.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: manifest is empty", ErrManifestInvalid)
	}
	if m.Kind != ProjectKind {
		return fmt.Errorf("%w: type is %q, expected %q", ErrManifestInvalid, m.Kind, ProjectKind)
	}
	for i, t := range m.Targets {
		for _, s := range t.Deploy {
			if s != SubsystemBackend && s != SubsystemFrontend {
				return fmt.Errorf("%w: target %d (%q) deploys unknown subsystem %q", ErrManifestInvalid, i, t.Name, s)
			}
		}
	}
	return nil
}

// NewManifest returns an empty, valid manifest.
func NewManifest() *Manifest {
	return &Manifest{Kind: ProjectKind, Version: "1", Targets: []Target{}}
}

// MarshalJSON writes the manifest including preserved unknown keys.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest
	known, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	if len(m.extra) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the manifest and keeps unknown keys for later writes.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type plain Manifest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range []string{"type", "version", "frontend", "contracts", targetsKey} {
		delete(raw, k)
	}
	*m = Manifest(p)
	if len(raw) > 0 {
		m.extra = raw
	}
	return nil
}
