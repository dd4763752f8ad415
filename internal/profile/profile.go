// Package profile defines target profiles: the type tables, templates and
// naming conventions of one generation target. Profiles register themselves
// from init and the engine stays generic over them.
package profile

import (
	"fmt"
	"sort"
	"sync"

	"resforge/internal/artifact"
	"resforge/internal/naming"
	"resforge/internal/typereg"
)

type Profile struct {
	Name        string
	Description string
	// Types maps a registry target name to its table. Every template's
	// Target must appear here.
	Types     map[string]typereg.Mapping
	Templates *artifact.Set
	Naming    naming.Conventions
}

// Install registers the profile's type tables into reg.
func (p *Profile) Install(reg *typereg.Registry) {
	for _, t := range p.targetNames() {
		reg.RegisterTarget(t, p.Types[t])
	}
}

// Targets lists the targets the templates render against.
func (p *Profile) Targets() []string {
	return p.Templates.Targets()
}

func (p *Profile) targetNames() []string {
	out := make([]string, 0, len(p.Types))
	for t := range p.Types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (p *Profile) check() error {
	if p.Name == "" {
		return fmt.Errorf("profile without name")
	}
	if p.Templates == nil {
		return fmt.Errorf("profile %s: no templates", p.Name)
	}
	for _, t := range p.Templates.Targets() {
		if _, ok := p.Types[t]; !ok {
			return fmt.Errorf("profile %s: templates use target %q without a type table", p.Name, t)
		}
	}
	return nil
}

var (
	mu       sync.RWMutex
	profiles = map[string]*Profile{}
)

// Register adds p to the global profile table. It panics on an invalid or
// duplicate profile; registration happens at init.
func Register(p *Profile) {
	if err := p.check(); err != nil {
		panic(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := profiles[p.Name]; dup {
		panic(fmt.Sprintf("profile %s registered twice", p.Name))
	}
	profiles[p.Name] = p
}

func Lookup(name string) (*Profile, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (known: %v)", name, namesLocked())
	}
	return p, nil
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	out := make([]string, 0, len(profiles))
	for n := range profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
