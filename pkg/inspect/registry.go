package inspect

import (
	"fmt"
	"sync"
	"time"

	"github.com/veracity-labs/veracity/pkg/config"
)

// entry pairs a descriptor with its implementation and enablement.
type entry struct {
	desc    Descriptor
	fn      Func
	enabled bool
}

// Registry holds the registered inspectors in registration order. It is
// populated once at startup and read-only afterwards; the lock exists for
// the configuration window, not steady state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds an inspector. Names must be unique; weight must lie in
// [0,1]; the timeout must be positive.
func (r *Registry) Register(desc Descriptor, fn Func) error {
	if desc.Name == "" {
		return fmt.Errorf("inspector name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("inspector %q: nil implementation", desc.Name)
	}
	if desc.Weight < 0 || desc.Weight > 1 {
		return fmt.Errorf("inspector %q: weight %v outside [0,1]", desc.Name, desc.Weight)
	}
	if desc.Timeout <= 0 {
		return fmt.Errorf("inspector %q: timeout must be positive", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[desc.Name]; ok {
		return fmt.Errorf("inspector %q already registered", desc.Name)
	}
	r.entries[desc.Name] = &entry{desc: desc, fn: fn, enabled: true}
	r.order = append(r.order, desc.Name)
	return nil
}

// ApplyOverrides folds per-inspector configuration into the registry:
// enable/disable and timeout replacement. Weights are version-frozen and
// deliberately not overridable. Unknown names are an error: a typo that
// silently changed nothing would be worse.
func (r *Registry) ApplyOverrides(overrides map[string]config.InspectorOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ov := range overrides {
		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("inspector override for unknown inspector %q", name)
		}
		if ov.Enabled != nil {
			e.enabled = *ov.Enabled
		}
		if ov.TimeoutSec > 0 {
			e.desc.Timeout = time.Duration(ov.TimeoutSec) * time.Second
		}
	}
	return nil
}

// Enabled returns the enabled descriptors in registration order.
func (r *Registry) Enabled() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.enabled {
			out = append(out, e.desc)
		}
	}
	return out
}

// enabledEntries returns the enabled entries in registration order, for the
// dispatcher.
func (r *Registry) enabledEntries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.enabled {
			out = append(out, e)
		}
	}
	return out
}
