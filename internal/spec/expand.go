package spec

import (
	"strings"

	"resforge/internal/typereg"
)

// Names of the fields expansion may add.
const (
	FieldID        = "id"
	FieldVersion   = "version"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
	FieldDeletedAt = "deleted_at"
	FieldIsDeleted = "is_deleted"
)

// Expand derives the spec that is actually generated: the identifier first,
// foreign keys of to-one relations, then fields implied by options. s itself
// is left untouched so callers can show what was written next to what was
// generated. Fields the user already declared are never replaced.
func Expand(s *ResourceSpec) *ResourceSpec {
	d := &ResourceSpec{
		name:      s.name,
		plural:    s.plural,
		relations: append([]RelationSpec(nil), s.relations...),
		options:   s.Options(),
		derived:   true,
	}

	declared := make(map[string]bool, len(s.fields))
	for _, f := range s.fields {
		declared[strings.ToLower(f.Name)] = true
	}
	add := func(f FieldSpec) {
		if declared[strings.ToLower(f.Name)] {
			return
		}
		declared[strings.ToLower(f.Name)] = true
		f.Implicit = true
		d.fields = append(d.fields, f)
	}

	// id goes first
	add(FieldSpec{
		Name:       FieldID,
		Type:       typereg.SemanticType{Kind: s.IDKind()},
		Required:   true,
		Visibility: Visibility{Response: true, Query: true},
	})
	canonical := map[string]string{}
	for _, n := range []string{FieldID, FieldVersion, FieldCreatedAt, FieldUpdatedAt, FieldDeletedAt, FieldIsDeleted} {
		canonical[n] = n
	}
	toOne := map[string]string{}
	for _, r := range s.relations {
		if r.Kind == ToOne {
			fk := strings.ToLower(r.Name + "_id")
			canonical[fk] = r.Name + "_id"
			toOne[fk] = r.Name
		}
	}
	// declared fields that stand for an expansion field take its spelling,
	// and a declared foreign key keeps its relation
	for _, f := range s.Fields() {
		key := strings.ToLower(f.Name)
		if n, ok := canonical[key]; ok {
			f.Name = n
		}
		if rel, ok := toOne[key]; ok && f.Relation == "" {
			f.Relation = rel
		}
		d.fields = append(d.fields, f)
	}

	// 1) foreign keys
	for _, r := range s.relations {
		if r.Kind != ToOne {
			continue
		}
		add(FieldSpec{
			Name:       r.Name + "_id",
			Type:       typereg.SemanticType{Kind: typereg.KindReference, Arg: r.Target},
			Required:   r.Required,
			Visibility: Visibility{Create: true, Update: true, Response: true, Query: true},
			Relation:   r.Name,
		})
	}

	// 2) optimistic locking
	if s.OptionBool(OptVersioned) {
		add(FieldSpec{
			Name:       FieldVersion,
			Type:       typereg.SemanticType{Kind: typereg.KindInteger},
			Required:   true,
			Default:    "1",
			Visibility: Visibility{Update: true, Response: true},
		})
	}

	// 3) audit
	if s.OptionBool(OptAuditFields) {
		for _, n := range []string{FieldCreatedAt, FieldUpdatedAt} {
			add(FieldSpec{
				Name:       n,
				Type:       typereg.SemanticType{Kind: typereg.KindTimestamp},
				Required:   true,
				Visibility: Visibility{Response: true, Query: true},
			})
		}
	}

	// 4) soft delete
	switch softDeleteMode(s.options) {
	case SoftDeleteTimestamp:
		add(FieldSpec{
			Name: FieldDeletedAt,
			Type: typereg.SemanticType{Kind: typereg.KindTimestamp},
		})
	case SoftDeleteFlag:
		add(FieldSpec{
			Name:     FieldIsDeleted,
			Type:     typereg.SemanticType{Kind: typereg.KindBoolean},
			Required: true,
			Default:  "false",
		})
	}
	return d
}

// SoftDelete reports the soft delete mode, empty when disabled.
func (s *ResourceSpec) SoftDelete() string {
	return softDeleteMode(s.options)
}
