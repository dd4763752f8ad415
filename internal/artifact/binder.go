package artifact

import (
	"sort"

	"resforge/internal/naming"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

// BoundField is a field with its names and the concrete type of one target.
type BoundField struct {
	Spec  spec.FieldSpec
	Names naming.FieldNames
	// Ident is the name in the case the current artifact emits.
	Ident string
	Type  typereg.ConcreteType
	// Enum holds the members when the field is an enum.
	Enum []string
}

func (f BoundField) Name() string { return f.Spec.Name }

func (f BoundField) Required() bool { return f.Spec.Required }

// BoundRelation is a relation with the names of its target.
type BoundRelation struct {
	Spec   spec.RelationSpec
	Names  naming.FieldNames
	Target naming.Set
	// ForeignKey is the implicit key field of a to-one relation.
	ForeignKey string
	// TargetID is the target's identifier type on the current target; zero
	// when it cannot be resolved.
	TargetID typereg.ConcreteType
}

type binding struct {
	field BoundField
	err   error
}

// Binder resolves names and types of every field once per target before
// any template runs. It only reads the spec and the registry snapshot.
type Binder struct {
	spec *spec.ResourceSpec
	reg  *typereg.Registry
	conv naming.Conventions

	byTarget  map[string]map[string]binding
	relations map[string][]BoundRelation
}

func NewBinder(s *spec.ResourceSpec, reg *typereg.Registry, conv naming.Conventions, targets []string) *Binder {
	b := &Binder{
		spec:      s,
		reg:       reg,
		conv:      conv,
		byTarget:  make(map[string]map[string]binding, len(targets)),
		relations: make(map[string][]BoundRelation, len(targets)),
	}
	fields := s.Fields()
	for _, t := range targets {
		m := make(map[string]binding, len(fields))
		for _, f := range fields {
			m[f.Name] = b.bind(f, t)
		}
		b.byTarget[t] = m
		b.relations[t] = b.bindRelations(t)
	}
	return b
}

func (b *Binder) bindRelations(target string) []BoundRelation {
	var out []BoundRelation
	for _, r := range b.spec.Relations() {
		br := BoundRelation{
			Spec:   r,
			Names:  b.conv.FieldNames(r.Name),
			Target: naming.Derive(r.Target, ""),
		}
		if r.Kind == spec.ToOne {
			br.ForeignKey = r.Name + "_id"
		}
		br.TargetID, _ = b.reg.Resolve(typereg.SemanticType{Kind: typereg.KindReference, Arg: r.Target}, target)
		out = append(out, br)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spec.Name < out[j].Spec.Name })
	return out
}

func (b *Binder) bind(f spec.FieldSpec, target string) binding {
	ct, err := b.reg.Resolve(f.Type, target)
	if err != nil {
		return binding{err: err}
	}
	bf := BoundField{
		Spec:  f,
		Names: b.conv.FieldNames(f.Name),
		Type:  ct,
	}
	if f.Type.Kind == typereg.KindEnum {
		bf.Enum, _ = b.reg.EnumMembers(f.Type.Arg)
	}
	return binding{field: bf}
}

func (b *Binder) lookup(target, field string) (binding, bool) {
	m, ok := b.byTarget[target]
	if !ok {
		return binding{}, false
	}
	bd, ok := m[field]
	return bd, ok
}

func (b *Binder) Relations(target string) []BoundRelation {
	return append([]BoundRelation(nil), b.relations[target]...)
}
