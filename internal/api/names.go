package api

import (
	"strings"

	"resforge/internal/spec"
)

// ResolveResource finds a loaded resource by name: exact match first, then
// a unique case-insensitive one.
func (s *Store) ResolveResource(name string) (spec.Raw, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return spec.Raw{}, false
	}
	doc := s.Document()
	if r, ok := doc.Resource(name); ok {
		return r, true
	}
	var found *spec.Raw
	for i := range doc.Resources {
		if strings.EqualFold(doc.Resources[i].Name, name) {
			if found != nil {
				return spec.Raw{}, false
			}
			found = &doc.Resources[i]
		}
	}
	if found == nil {
		return spec.Raw{}, false
	}
	return *found, true
}
