// Package targets resolves deployment targets declared in the manifest.
package targets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shipctl/shipctl/internal/config"
)

var (
	// ErrTargetNotFound indicates that an identifier matched neither an ordinal nor a name.
	ErrTargetNotFound = errors.New("target not found")
	// ErrNoEligibleTarget indicates that the manifest has no target this client can operate on.
	ErrNoEligibleTarget = errors.New("no eligible target")
	// ErrTargetRequired indicates that several targets are eligible and none was chosen.
	ErrTargetRequired = errors.New("target identifier required")
	// ErrTargetIneligible indicates a remote operation on a target of a foreign provider.
	ErrTargetIneligible = errors.New("target provider not supported")
	// ErrRemoteNotConfigured indicates a target without project id or endpoint.
	ErrRemoteNotConfigured = errors.New("target not configured for remote operations")
)

// Entry is a target together with its position and capability.
// Eligible is decided once, when the entry is built.
type Entry struct {
	// Index is the ordinal position in the manifest.
	Index int
	// Target is the manifest entry.
	Target config.Target
	// Eligible reports whether the provider is the one this client operates on.
	Eligible bool
}

// Name returns the target name.
func (e Entry) Name() string { return e.Target.Name }

// Chooser picks one of several eligible entries, typically by asking the user.
type Chooser interface {
	Choose(entries []Entry) (Entry, error)
}

// Registry is a read-only view over a manifest's target list.
type Registry struct {
	entries []Entry
}

// New builds a Registry from the manifest's targets.
func New(m *config.Manifest) *Registry {
	r := &Registry{}
	if m == nil {
		return r
	}
	r.entries = make([]Entry, 0, len(m.Targets))
	for i, t := range m.Targets {
		r.entries = append(r.entries, Entry{
			Index:    i,
			Target:   t,
			Eligible: strings.TrimSpace(t.Provider) == config.ProviderShipctl,
		})
	}
	return r
}

// All returns every target, eligible or not, in manifest order.
func (r *Registry) All() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ListEligible returns the targets whose provider this client operates on.
func (r *Registry) ListEligible() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Eligible {
			out = append(out, e)
		}
	}
	return out
}

// Resolve finds a target by ordinal position or name. A non-negative integer
// is tried as a zero-based position first; otherwise, or when out of range,
// the first target with exactly that name wins.
func (r *Registry) Resolve(identifier string) (Entry, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return Entry{}, fmt.Errorf("%w: empty identifier", ErrTargetNotFound)
	}
	if n, err := strconv.Atoi(id); err == nil && n >= 0 && n < len(r.entries) {
		return r.entries[n], nil
	}
	for _, e := range r.entries {
		if e.Target.Name == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrTargetNotFound, id)
}

// Select resolves identifier when given. Without one it uses the only
// eligible target, or asks chooser when several are eligible. A nil chooser
// means interactive resolution is unavailable.
func (r *Registry) Select(identifier string, chooser Chooser) (Entry, error) {
	if strings.TrimSpace(identifier) != "" {
		return r.Resolve(identifier)
	}
	eligible := r.ListEligible()
	switch {
	case len(eligible) == 0:
		return Entry{}, fmt.Errorf("%w: no target uses provider %q", ErrNoEligibleTarget, config.ProviderShipctl)
	case len(eligible) == 1:
		return eligible[0], nil
	case chooser == nil:
		return Entry{}, fmt.Errorf("%w: %d eligible targets, pass a name or index", ErrTargetRequired, len(eligible))
	}
	return chooser.Choose(eligible)
}

// RequireRemote checks that e can be used for control-plane operations.
func RequireRemote(e Entry) error {
	if !e.Eligible {
		return fmt.Errorf("%w: target %q uses provider %q", ErrTargetIneligible, e.Name(), e.Target.Provider)
	}
	if strings.TrimSpace(e.Target.ProjectID) == "" {
		return fmt.Errorf("%w: target %q has no projectId", ErrRemoteNotConfigured, e.Name())
	}
	if strings.TrimSpace(e.Target.Endpoint) == "" {
		return fmt.Errorf("%w: target %q has no endpoint", ErrRemoteNotConfigured, e.Name())
	}
	return nil
}
