// Package artifact holds the template set of a target profile and the
// renderer that binds a resource spec into each template.
package artifact

import (
	"fmt"
	"sort"
	"sync"

	"resforge/internal/naming"
	"resforge/internal/spec"
)

type Kind string

const (
	KindModel     Kind = "model"
	KindCreate    Kind = "create"
	KindUpdate    Kind = "update"
	KindResponse  Kind = "response"
	KindQuery     Kind = "query"
	KindAccess    Kind = "access"
	KindRoute     Kind = "route"
	KindTest      Kind = "test"
	KindMigration Kind = "migration"
)

// Order is the rendering and manifest order of the built-in kinds.
var Order = []Kind{
	KindModel, KindCreate, KindUpdate, KindResponse, KindQuery,
	KindAccess, KindRoute, KindTest, KindMigration,
}

func rank(k Kind) int {
	for i, o := range Order {
		if o == k {
			return i
		}
	}
	return len(Order)
}

// Filter selects the fields an artifact consumes.
type Filter func(f spec.FieldSpec) bool

// AllFields keeps every field; models and migrations use it.
func AllFields(spec.FieldSpec) bool { return true }

// VisibleIn keeps fields whose visibility flag for kind is set.
func VisibleIn(kind Kind) Filter {
	return func(f spec.FieldSpec) bool { return f.Visibility.Visible(string(kind)) }
}

// Body renders one artifact. It writes to c and records the fields it emits
// through c.Each, c.Use or c.UseAs.
type Body func(c *Context) error

// Template is one artifact kind of a target profile. Templates carry no
// state; the same value serves every run.
type Template struct {
	Kind Kind
	// Target selects the type registry table the fields are bound with.
	Target string
	// NameCase is the case field names are emitted in; empty means the
	// profile's field convention.
	NameCase naming.Case
	Filter   Filter
	Path     func(n naming.Set) string
	Body     Body
	// When gates templates that only apply under some option.
	When func(s *spec.ResourceSpec) bool
}

func (t Template) Applies(s *spec.ResourceSpec) bool {
	return t.When == nil || t.When(s)
}

func (t Template) filter() Filter {
	if t.Filter == nil {
		return AllFields
	}
	return t.Filter
}

// Set is the registered templates of one profile, at most one per kind.
type Set struct {
	name string

	mu        sync.RWMutex
	templates map[Kind]Template
}

func NewSet(name string) *Set {
	return &Set{name: name, templates: make(map[Kind]Template)}
}

func (s *Set) Name() string { return s.name }

func (s *Set) Register(t Template) error {
	if t.Kind == "" {
		return fmt.Errorf("template set %s: template without kind", s.name)
	}
	if t.Body == nil {
		return fmt.Errorf("template set %s: %s has no body", s.name, t.Kind)
	}
	if t.Path == nil {
		return fmt.Errorf("template set %s: %s has no path", s.name, t.Kind)
	}
	if t.Target == "" {
		return fmt.Errorf("template set %s: %s has no target", s.name, t.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.templates[t.Kind]; dup {
		return fmt.Errorf("template set %s: %s registered twice", s.name, t.Kind)
	}
	s.templates[t.Kind] = t
	return nil
}

func (s *Set) MustRegister(ts ...Template) *Set {
	for _, t := range ts {
		if err := s.Register(t); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *Set) Get(k Kind) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[k]
	return t, ok
}

// Templates returns the templates in Order; kinds outside Order follow,
// sorted by name.
func (s *Set) Templates() []Template {
	s.mu.RLock()
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i].Kind), rank(out[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Targets lists the distinct targets the templates bind against.
func (s *Set) Targets() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range s.Templates() {
		if !seen[t.Target] {
			seen[t.Target] = true
			out = append(out, t.Target)
		}
	}
	sort.Strings(out)
	return out
}
