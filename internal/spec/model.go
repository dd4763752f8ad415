// Package spec holds the resource specification model: the raw input shape,
// the validated immutable ResourceSpec, and option expansion.
package spec

import (
	"sort"
	"strings"

	"resforge/internal/typereg"
)

// Raw is the already-parsed input a loader or API caller supplies.
type Raw struct {
	Name      string         `json:"name" yaml:"name"`
	Plural    string         `json:"plural,omitempty" yaml:"plural,omitempty"`
	Fields    []RawField     `json:"fields" yaml:"fields"`
	Relations []RawRelation  `json:"relations,omitempty" yaml:"relations,omitempty"`
	Options   map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

type RawField struct {
	Name       string        `json:"name" yaml:"name"`
	Type       string        `json:"type" yaml:"type"`
	Required   bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Unique     bool          `json:"unique,omitempty" yaml:"unique,omitempty"`
	Default    string        `json:"default,omitempty" yaml:"default,omitempty"`
	MinLength  *int          `json:"minLength,omitempty" yaml:"min_length,omitempty"`
	MaxLength  *int          `json:"maxLength,omitempty" yaml:"max_length,omitempty"`
	Min        *float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64      `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern    string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Visibility RawVisibility `json:"visibility,omitempty" yaml:"visibility,omitempty"`
}

// RawVisibility leaves unset flags nil so defaults can apply.
type RawVisibility struct {
	Create   *bool `json:"create,omitempty" yaml:"create,omitempty"`
	Update   *bool `json:"update,omitempty" yaml:"update,omitempty"`
	Response *bool `json:"response,omitempty" yaml:"response,omitempty"`
	Query    *bool `json:"query,omitempty" yaml:"query,omitempty"`
}

type RawRelation struct {
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind" yaml:"kind"`
	Target   string `json:"target" yaml:"target"`
	Cascade  string `json:"cascade,omitempty" yaml:"cascade,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	External bool   `json:"external,omitempty" yaml:"external,omitempty"`
}

type Visibility struct {
	Create   bool `json:"create"`
	Update   bool `json:"update"`
	Response bool `json:"response"`
	Query    bool `json:"query"`
}

// Visible reports the flag for a contract kind; kinds without a flag are
// always visible.
func (v Visibility) Visible(kind string) bool {
	switch kind {
	case "create":
		return v.Create
	case "update":
		return v.Update
	case "response":
		return v.Response
	case "query":
		return v.Query
	}
	return true
}

type Constraints struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

func (c Constraints) IsZero() bool {
	return c.MinLength == nil && c.MaxLength == nil && c.Min == nil && c.Max == nil && c.Pattern == ""
}

func (c Constraints) clone() Constraints {
	out := Constraints{Pattern: c.Pattern}
	if c.MinLength != nil {
		v := *c.MinLength
		out.MinLength = &v
	}
	if c.MaxLength != nil {
		v := *c.MaxLength
		out.MaxLength = &v
	}
	if c.Min != nil {
		v := *c.Min
		out.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		out.Max = &v
	}
	return out
}

type FieldSpec struct {
	Name        string               `json:"name"`
	Type        typereg.SemanticType `json:"type"`
	Required    bool                 `json:"required"`
	Unique      bool                 `json:"unique,omitempty"`
	Default     string               `json:"default,omitempty"`
	Constraints Constraints          `json:"constraints,omitempty"`
	Visibility  Visibility           `json:"visibility"`
	// Implicit marks fields added by option or relation expansion.
	Implicit bool `json:"implicit,omitempty"`
	// Relation names the to-one relation a foreign key field belongs to,
	// implicit or declared.
	Relation string `json:"relation,omitempty"`
}

// RequiredIn reports whether the field must be present in a contract kind.
// A field invisible to the kind is never required there.
func (f FieldSpec) RequiredIn(kind string) bool {
	return f.Required && f.Visibility.Visible(kind)
}

func (f FieldSpec) clone() FieldSpec {
	f.Constraints = f.Constraints.clone()
	return f
}

type RelationKind string

const (
	ToOne      RelationKind = "to-one"
	ToMany     RelationKind = "to-many"
	ManyToMany RelationKind = "many-to-many"
)

type Cascade string

const (
	CascadeRestrict Cascade = "restrict"
	CascadeCascade  Cascade = "cascade"
	CascadeSetNull  Cascade = "set-null"
)

type RelationSpec struct {
	Name     string       `json:"name"`
	Kind     RelationKind `json:"kind"`
	Target   string       `json:"target"`
	Cascade  Cascade      `json:"cascade"`
	Required bool         `json:"required,omitempty"`
	External bool         `json:"external,omitempty"`
}

// ResourceSpec is a validated resource definition. It is never mutated after
// construction; Expand derives a new value.
type ResourceSpec struct {
	name      string
	plural    string
	fields    []FieldSpec
	relations []RelationSpec
	options   map[string]string
	derived   bool
}

func (s *ResourceSpec) Name() string { return s.name }

// PluralOverride is the explicit plural, empty when the rule table applies.
func (s *ResourceSpec) PluralOverride() string { return s.plural }

// Derived reports whether s came out of Expand.
func (s *ResourceSpec) Derived() bool { return s.derived }

func (s *ResourceSpec) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.clone()
	}
	return out
}

func (s *ResourceSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return f.clone(), true
		}
	}
	return FieldSpec{}, false
}

func (s *ResourceSpec) Relations() []RelationSpec {
	return append([]RelationSpec(nil), s.relations...)
}

func (s *ResourceSpec) Option(name string) (string, bool) {
	v, ok := s.options[name]
	return v, ok
}

// OptionBool is false for unset or non-boolean options.
func (s *ResourceSpec) OptionBool(name string) bool {
	v, ok := s.options[name]
	if !ok {
		return false
	}
	b, ok := parseBool(v)
	return ok && b
}

// Options returns the options sorted by name.
func (s *ResourceSpec) Options() map[string]string {
	out := make(map[string]string, len(s.options))
	for k, v := range s.options {
		out[k] = v
	}
	return out
}

func (s *ResourceSpec) OptionNames() []string {
	out := make([]string, 0, len(s.options))
	for k := range s.options {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IDKind is the semantic kind of the primary identifier.
func (s *ResourceSpec) IDKind() typereg.Kind {
	if v, ok := s.options[OptIDType]; ok {
		return typereg.Kind(strings.ToLower(v))
	}
	return typereg.KindIdentifier
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
