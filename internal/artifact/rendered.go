package artifact

import "resforge/internal/typereg"

// FieldRef is one field an artifact emitted: the canonical field name, the
// name as spelled in the artifact and the type it was emitted with.
type FieldRef struct {
	Field   string               `json:"field"`
	Emitted string               `json:"emitted"`
	Type    typereg.ConcreteType `json:"type"`
}

// Rendered is the output of one template.
type Rendered struct {
	Kind    Kind   `json:"kind"`
	Target  string `json:"target"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	// ReferencedFields is what the consistency checker compares.
	ReferencedFields []FieldRef `json:"referencedFields"`
	// EffectiveFields is the filtered field list the body was given.
	EffectiveFields []string `json:"effectiveFields"`
	// Failed is set when the render failed; Content is empty then.
	Failed bool `json:"failed,omitempty"`
}

func (r Rendered) Reference(field string) (FieldRef, bool) {
	for _, ref := range r.ReferencedFields {
		if ref.Field == field {
			return ref, true
		}
	}
	return FieldRef{}, false
}

func (r Rendered) References(field string) bool {
	_, ok := r.Reference(field)
	return ok
}

func (r Rendered) ReferencedNames() []string {
	out := make([]string, len(r.ReferencedFields))
	for i, ref := range r.ReferencedFields {
		out[i] = ref.Field
	}
	return out
}
