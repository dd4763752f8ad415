package artifact

import (
	"bytes"
	"errors"
	"fmt"

	"resforge/internal/naming"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

// ErrFieldNotInScope is returned when a body references a field outside its
// effective field list.
var ErrFieldNotInScope = errors.New("field not in artifact scope")

// Context is what a template body sees: the effective fields, the naming
// set, relations and options. It records which fields the body emitted.
type Context struct {
	Kind      Kind
	Target    string
	Resource  *spec.ResourceSpec
	Names     naming.Set
	Relations []BoundRelation

	fields []BoundField
	index  map[string]int

	buf  bytes.Buffer
	refs []FieldRef
	seen map[string]bool
}

func newContext(kind Kind, target string, s *spec.ResourceSpec, names naming.Set, fields []BoundField, rels []BoundRelation) *Context {
	c := &Context{
		Kind:      kind,
		Target:    target,
		Resource:  s,
		Names:     names,
		Relations: rels,
		fields:    fields,
		index:     make(map[string]int, len(fields)),
		seen:      make(map[string]bool, len(fields)),
	}
	for i, f := range fields {
		c.index[f.Spec.Name] = i
	}
	return c
}

// Fields is the effective field list. Reading it records nothing.
func (c *Context) Fields() []BoundField {
	return append([]BoundField(nil), c.fields...)
}

// Each records every effective field as emitted and returns them.
func (c *Context) Each() []BoundField {
	for _, f := range c.fields {
		c.record(FieldRef{Field: f.Spec.Name, Emitted: f.Ident, Type: f.Type})
	}
	return c.Fields()
}

// Use records one field as emitted with its bound type.
func (c *Context) Use(name string) (BoundField, error) {
	f, err := c.field(name)
	if err != nil {
		return BoundField{}, err
	}
	c.record(FieldRef{Field: f.Spec.Name, Emitted: f.Ident, Type: f.Type})
	return f, nil
}

// UseAs records a field emitted with a type other than the bound one.
func (c *Context) UseAs(name string, t typereg.ConcreteType) (BoundField, error) {
	f, err := c.field(name)
	if err != nil {
		return BoundField{}, err
	}
	f.Type = t
	c.record(FieldRef{Field: f.Spec.Name, Emitted: f.Ident, Type: t})
	return f, nil
}

// UseNamed records a field emitted under an explicit spelling.
func (c *Context) UseNamed(name, emitted string) (BoundField, error) {
	f, err := c.field(name)
	if err != nil {
		return BoundField{}, err
	}
	f.Ident = emitted
	c.record(FieldRef{Field: f.Spec.Name, Emitted: emitted, Type: f.Type})
	return f, nil
}

// Has reports whether name is in the effective list.
func (c *Context) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

func (c *Context) field(name string) (BoundField, error) {
	i, ok := c.index[name]
	if !ok {
		return BoundField{}, fmt.Errorf("%s: %q: %w", c.Kind, name, ErrFieldNotInScope)
	}
	return c.fields[i], nil
}

func (c *Context) record(ref FieldRef) {
	if c.seen[ref.Field] {
		return
	}
	c.seen[ref.Field] = true
	c.refs = append(c.refs, ref)
}

func (c *Context) Option(name string) string {
	v, _ := c.Resource.Option(name)
	return v
}

func (c *Context) OptionBool(name string) bool {
	return c.Resource.OptionBool(name)
}

func (c *Context) Write(p []byte) (int, error) { return c.buf.Write(p) }

func (c *Context) WriteString(s string) (int, error) { return c.buf.WriteString(s) }

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(&c.buf, format, args...)
}

// Line writes one formatted line.
func (c *Context) Line(format string, args ...any) {
	fmt.Fprintf(&c.buf, format, args...)
	c.buf.WriteByte('\n')
}
