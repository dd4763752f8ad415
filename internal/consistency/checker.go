// Package consistency cross-checks the rendered artifacts of one run: every
// artifact that emits a field must agree on its name and normalized type,
// and no artifact may silently drop a required field it is meant to carry.
package consistency

import (
	"sort"
	"strings"

	"resforge/internal/artifact"
	"resforge/internal/diag"
	"resforge/internal/naming"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

type use struct {
	kind artifact.Kind
	ref  artifact.FieldRef
}

// Check runs over the artifacts in the order given; failed artifacts are
// ignored. s is the spec the artifacts were rendered from.
func Check(arts []artifact.Rendered, s *spec.ResourceSpec) diag.Problems {
	var ps diag.Problems
	ps = append(ps, checkDrift(arts)...)
	ps = append(ps, checkRequired(arts, s)...)
	return ps
}

func checkDrift(arts []artifact.Rendered) diag.Problems {
	var ps diag.Problems

	byField := map[string][]use{}
	var order []string
	for _, a := range arts {
		if a.Failed {
			continue
		}
		for _, ref := range a.ReferencedFields {
			if _, ok := byField[ref.Field]; !ok {
				order = append(order, ref.Field)
			}
			byField[ref.Field] = append(byField[ref.Field], use{kind: a.Kind, ref: ref})
		}
	}

	for _, field := range order {
		uses := byField[field]

		// type: one error per field, naming the first two artifacts that
		// disagree
		first := uses[0]
		for _, u := range uses[1:] {
			if u.ref.Type.Tag != first.ref.Type.Tag {
				ps = append(ps, diag.Problem{
					Stage:    diag.StageConsistency,
					Severity: diag.SeverityError,
					Code:     diag.CodeTypeDrift,
					Artifact: string(first.kind),
					Related:  string(u.kind),
					Field:    field,
					Message: "field is " + describe(first.ref.Type) + " in " + string(first.kind) +
						" but " + describe(u.ref.Type) + " in " + string(u.kind) + tagSummary(uses),
				})
				break
			}
		}

		// name: each spelling must be a case rendering of the field
		for _, u := range uses {
			if !naming.Spells(field, u.ref.Emitted) {
				ps = append(ps, diag.Problem{
					Stage:    diag.StageConsistency,
					Severity: diag.SeverityError,
					Code:     diag.CodeNameDrift,
					Artifact: string(u.kind),
					Field:    field,
					Message:  "emitted as " + u.ref.Emitted + ", which does not name " + field,
				})
			}
		}
	}
	return ps
}

func describe(t typereg.ConcreteType) string {
	return string(t.Tag) + " (" + t.Spelling + ")"
}

// tagSummary lists every tag when more than two artifacts are involved.
func tagSummary(uses []use) string {
	if len(uses) <= 2 {
		return ""
	}
	kinds := map[typereg.Tag][]string{}
	for _, u := range uses {
		kinds[u.ref.Type.Tag] = append(kinds[u.ref.Type.Tag], string(u.kind))
	}
	tags := make([]string, 0, len(kinds))
	for t := range kinds {
		tags = append(tags, string(t))
	}
	sort.Strings(tags)
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t + ": " + strings.Join(kinds[typereg.Tag(t)], ", ")
	}
	return "; " + strings.Join(parts, "; ")
}

// checkRequired verifies that every required field visible to a contract
// artifact, and every required field in the model, was emitted there.
func checkRequired(arts []artifact.Rendered, s *spec.ResourceSpec) diag.Problems {
	var ps diag.Problems
	if s == nil {
		return ps
	}
	for _, a := range arts {
		if a.Failed {
			continue
		}
		switch a.Kind {
		case artifact.KindCreate, artifact.KindUpdate, artifact.KindResponse, artifact.KindQuery, artifact.KindModel:
		default:
			continue
		}
		for _, f := range s.Fields() {
			if !f.Required {
				continue
			}
			if a.Kind != artifact.KindModel && !f.Visibility.Visible(string(a.Kind)) {
				continue
			}
			if a.References(f.Name) {
				continue
			}
			ps = append(ps, diag.Problem{
				Stage:    diag.StageConsistency,
				Severity: diag.SeverityError,
				Code:     diag.CodeMissingRequiredField,
				Artifact: string(a.Kind),
				Field:    f.Name,
				Message:  "required field " + f.Name + " is visible to " + string(a.Kind) + " but the artifact does not emit it",
			})
		}
	}
	return ps
}
