package rules

import (
	"fmt"
	"strings"
	"sync"
)

// Registry maps rule ids to rules and iterates in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Rule
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Rule)}
}

// Register adds r, or replaces the rule already registered under the same id.
// A replaced rule keeps its original position. Callers should treat
// replaced == true as a configuration error.
func (reg *Registry) Register(r Rule) (replaced bool) {
	if r == nil {
		panic("rules: Register called with nil rule")
	}
	id := r.ID()
	if id == "" {
		panic("rules: Register called with empty rule id")
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.byID[id]; exists {
		reg.byID[id] = r
		return true
	}
	reg.byID[id] = r
	reg.order = append(reg.order, id)
	return false
}

func (reg *Registry) Get(id string) (Rule, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.byID[id]
	return r, ok
}

// List returns every rule in registration order.
func (reg *Registry) List() []Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Rule, 0, len(reg.order))
	for _, id := range reg.order {
		out = append(out, reg.byID[id])
	}
	return out
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.order)
}

// Resolve returns the rules named by a comma-separated selector, in selector
// order. An empty selector returns every rule.
func (reg *Registry) Resolve(selector string) ([]Rule, error) {
	if strings.TrimSpace(selector) == "" {
		return reg.List(), nil
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var selected []Rule
	seen := make(map[string]bool)
	for _, id := range strings.Split(selector, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		r, ok := reg.byID[id]
		if !ok {
			return nil, fmt.Errorf("rule not found: %s", id)
		}
		seen[id] = true
		selected = append(selected, r)
	}
	return selected, nil
}

var defaultRegistry = NewRegistry()

// Default is the registry built-in rules register into from init().
func Default() *Registry {
	return defaultRegistry
}

// Register adds r to the default registry, wrapped with the standard
// policy options (severity, environments, waive).
func Register(r Rule) (replaced bool) {
	return defaultRegistry.Register(WithPolicy(r))
}

func List() []Rule {
	return defaultRegistry.List()
}

func Resolve(selector string) ([]Rule, error) {
	return defaultRegistry.Resolve(selector)
}
