// Package registry tracks registered units, their squad membership, and
// declared capabilities. One registry is constructed per orchestrator and
// passed by reference; there is no process-wide instance.
package registry

import (
	"sort"
	"sync"

	"seadog/internal/model"
	"seadog/internal/unit"
)

type Registry struct {
	mu     sync.RWMutex
	units  map[string]*unit.Operator
	groups map[string][]string // squad → unit ids in registration order
}

func New() *Registry {
	return &Registry{
		units:  make(map[string]*unit.Operator),
		groups: make(map[string][]string),
	}
}

// Register adds an operator to the registry, keyed by unit id. Registering
// the same id again is a no-op: the registry keeps exactly one entry and one
// group-index slot per id.
func (r *Registry) Register(op *unit.Operator) {
	ident := op.Identity()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[ident.ID]; exists {
		return
	}
	r.units[ident.ID] = op
	r.groups[ident.Squad] = append(r.groups[ident.Squad], ident.ID)
}

// Get returns the operator for a unit id.
func (r *Registry) Get(id string) (*unit.Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.units[id]
	return op, ok
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// ByGroup returns the operators in a squad, in registration order.
func (r *Registry) ByGroup(group string) []*unit.Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.groups[group]
	out := make([]*unit.Operator, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.units[id])
	}
	return out
}

// Groups returns the known squad names, sorted.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// All returns every registered operator in stable (sorted-id) order.
func (r *Registry) All() []*unit.Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.units))
	for id := range r.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*unit.Operator, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.units[id])
	}
	return out
}

// WithCapabilities returns the ids of units that declare at least one of the
// required capabilities.
func (r *Registry) WithCapabilities(required []string) map[string]bool {
	want := make(map[string]bool, len(required))
	for _, c := range required {
		want[c] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool)
	for id, op := range r.units {
		for _, c := range op.Capabilities() {
			if want[c] {
				out[id] = true
				break
			}
		}
	}
	return out
}

// CapabilityUnion returns the union of capabilities declared across the
// given unit ids. Unknown ids are skipped.
func (r *Registry) CapabilityUnion(ids []string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool)
	for _, id := range ids {
		op, ok := r.units[id]
		if !ok {
			continue
		}
		for _, c := range op.Capabilities() {
			out[c] = true
		}
	}
	return out
}

// StatusCounts buckets registered units by lifecycle disposition.
func (r *Registry) StatusCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int{
		"total":    len(r.units),
		"standby":  0,
		"deployed": 0,
		"complete": 0,
		"failed":   0,
	}
	for _, op := range r.units {
		switch s := op.Status(); {
		case s == model.UnitStandby:
			counts["standby"]++
		case s == model.UnitComplete:
			counts["complete"]++
		case s == model.UnitFailed || s == model.UnitAbort:
			counts["failed"]++
		default:
			counts["deployed"]++
		}
	}
	return counts
}
