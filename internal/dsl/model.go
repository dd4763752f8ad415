package dsl

import (
	"fmt"
	"sort"

	"resforge/internal/spec"
	"resforge/internal/typereg"
)

// Document is what one spec file declares: resources and the enums their
// fields use. Inline enums (enum[a, b]) are named <resource>_<field>.
type Document struct {
	Source    string              `yaml:"-"`
	Resources []spec.Raw          `yaml:"resources"`
	Enums     map[string][]string `yaml:"enums,omitempty"`
}

// Register adds the document's enums to reg, and the identifier kind of
// every resource so relations between loaded resources resolve.
func (d *Document) Register(reg *typereg.Registry) {
	for _, name := range d.EnumNames() {
		reg.RegisterEnum(name, d.Enums[name])
	}
	for _, r := range d.Resources {
		reg.RegisterResource(r.Name, r.IDKind())
	}
}

func (d *Document) EnumNames() []string {
	out := make([]string, 0, len(d.Enums))
	for k := range d.Enums {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *Document) addEnum(name string, members []string) error {
	if d.Enums == nil {
		d.Enums = map[string][]string{}
	}
	if _, dup := d.Enums[name]; dup {
		return fmt.Errorf("enum %q declared twice", name)
	}
	d.Enums[name] = members
	return nil
}

// Merge appends other's resources and enums. Two documents may not declare
// the same resource or enum.
func (d *Document) Merge(other *Document) error {
	seen := make(map[string]bool, len(d.Resources))
	for _, r := range d.Resources {
		seen[r.Name] = true
	}
	for _, r := range other.Resources {
		if seen[r.Name] {
			return fmt.Errorf("duplicate resource %q (%s)", r.Name, other.Source)
		}
		seen[r.Name] = true
		d.Resources = append(d.Resources, r)
	}
	for _, name := range other.EnumNames() {
		if err := d.addEnum(name, other.Enums[name]); err != nil {
			return fmt.Errorf("%s: %w", other.Source, err)
		}
	}
	return nil
}

// Resource returns the named resource.
func (d *Document) Resource(name string) (spec.Raw, bool) {
	for _, r := range d.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return spec.Raw{}, false
}
