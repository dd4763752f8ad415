package typereg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownTarget       = errors.New("unknown target")
	ErrUnknownType         = errors.New("unknown type")
	ErrUnknownEnum         = errors.New("enum members not registered")
	ErrUnresolvedReference = errors.New("reference target identifier not known")
)

// Registry holds type mappings per target plus the enum and resource side
// tables. Mutation happens while profiles and catalogs load; a generation run
// works on a Snapshot.
type Registry struct {
	mu        sync.RWMutex
	targets   map[string]Mapping
	enums     map[string][]string
	resources map[string]Kind
}

func New() *Registry {
	return &Registry{
		targets:   make(map[string]Mapping),
		enums:     make(map[string][]string),
		resources: make(map[string]Kind),
	}
}

// RegisterTarget adds or replaces the mapping for target.
func (r *Registry) RegisterTarget(target string, m Mapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[target] = m.clone()
}

func (r *Registry) RegisterEnum(name string, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[strings.ToLower(name)] = append([]string(nil), members...)
}

// RegisterResource records the identifier kind of a resource so references
// to it can resolve.
func (r *Registry) RegisterResource(name string, idKind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[strings.ToLower(name)] = idKind
}

func (r *Registry) HasTarget(target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[target]
	return ok
}

func (r *Registry) HasResource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resources[strings.ToLower(name)]
	return ok
}

func (r *Registry) EnumMembers(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.enums[strings.ToLower(name)]
	return append([]string(nil), m...), ok
}

// Targets returns registered target names sorted.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for t := range r.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Mapping returns a copy of the table for target.
func (r *Registry) Mapping(target string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.targets[target]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// Maps reports whether target has a mapping for kind. For reference this
// also requires the identifier kind to be mapped.
func (r *Registry) Maps(kind Kind, target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.targets[target]
	if !ok {
		return false
	}
	_, ok = m[kind]
	return ok
}

// Resolve maps a semantic type to the concrete type of target.
func (r *Registry) Resolve(t SemanticType, target string) (ConcreteType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.targets[target]
	if !ok {
		return ConcreteType{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	switch t.Kind {
	case KindEnum:
		if _, ok := r.enums[strings.ToLower(t.Arg)]; !ok {
			return ConcreteType{}, fmt.Errorf("%s: %w", t, ErrUnknownEnum)
		}
	case KindReference:
		idKind, ok := r.resources[strings.ToLower(t.Arg)]
		if !ok {
			return ConcreteType{}, fmt.Errorf("%s: %w", t, ErrUnresolvedReference)
		}
		// a reference is spelled and compared as the target's identifier,
		// unless the target spells references explicitly
		id, ok := m[idKind]
		if !ok {
			return ConcreteType{}, fmt.Errorf("%s: identifier kind %s on target %q: %w", t, idKind, target, ErrUnknownType)
		}
		if ref, ok := m[KindReference]; ok {
			return ConcreteType{Spelling: expand(ref.Spelling, t.Arg, id.Spelling), Tag: id.Tag}, nil
		}
		return id, nil
	}
	ct, ok := m[t.Kind]
	if !ok {
		return ConcreteType{}, fmt.Errorf("%s on target %q: %w", t, target, ErrUnknownType)
	}
	ct.Spelling = expand(ct.Spelling, t.Arg, "")
	return ct, nil
}

// expand fills the {arg} and {id} placeholders of a spelling.
func expand(spelling, arg, id string) string {
	if !strings.Contains(spelling, "{") {
		return spelling
	}
	return strings.NewReplacer("{arg}", arg, "{id}", id).Replace(spelling)
}

// Snapshot returns an independent copy. Renders of one run share a snapshot
// and nothing else mutates it.
func (r *Registry) Snapshot() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := New()
	for t, m := range r.targets {
		s.targets[t] = m.clone()
	}
	for n, m := range r.enums {
		s.enums[n] = append([]string(nil), m...)
	}
	for n, k := range r.resources {
		s.resources[n] = k
	}
	return s
}
