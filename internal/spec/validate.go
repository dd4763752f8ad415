package spec

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"resforge/internal/diag"
	"resforge/internal/typereg"
)

var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Validate checks raw against the registry for every target that will be
// rendered and builds the ResourceSpec. All problems are reported together;
// the spec is nil when any of them is an error.
func Validate(raw Raw, reg *typereg.Registry, targets []string) (*ResourceSpec, diag.Problems) {
	var ps diag.Problems

	name := strings.TrimSpace(raw.Name)
	if !nameRe.MatchString(name) {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidName,
			"resource name %q must start with a letter and contain only letters, digits, '_' or '-'", raw.Name))
	}

	// 1) fields: names, duplicates, types, constraints
	fields := make([]FieldSpec, 0, len(raw.Fields))
	seen := make(map[string]string, len(raw.Fields))
	for _, rf := range raw.Fields {
		fname := strings.TrimSpace(rf.Name)
		if !nameRe.MatchString(fname) {
			ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidName,
				"field name %q is not a valid identifier", rf.Name).WithField(rf.Name))
			continue
		}
		key := strings.ToLower(fname)
		if first, dup := seen[key]; dup {
			ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeDuplicateField,
				"field %q duplicates %q (names are case-insensitive)", fname, first).WithField(fname))
			continue
		}
		seen[key] = fname

		st := typereg.Parse(rf.Type)
		ps = append(ps, checkType(fname, st, reg, targets)...)

		f := FieldSpec{
			Name:     fname,
			Type:     st,
			Required: rf.Required,
			Unique:   rf.Unique,
			Default:  rf.Default,
			Constraints: Constraints{
				MinLength: rf.MinLength,
				MaxLength: rf.MaxLength,
				Min:       rf.Min,
				Max:       rf.Max,
				Pattern:   rf.Pattern,
			}.clone(),
			Visibility: Visibility{
				Create:   boolOr(rf.Visibility.Create, true),
				Update:   boolOr(rf.Visibility.Update, true),
				Response: boolOr(rf.Visibility.Response, true),
				Query:    boolOr(rf.Visibility.Query, false),
			},
		}
		ps = append(ps, checkConstraints(f)...)
		if st.Kind.Known() {
			d, dps := checkDefault(f, reg)
			ps = append(ps, dps...)
			f.Default = d
		}
		fields = append(fields, f)
	}

	// 2) relations
	relations := make([]RelationSpec, 0, len(raw.Relations))
	relSeen := map[string]bool{}
	for _, rr := range raw.Relations {
		rel, rps := buildRelation(rr, name, reg)
		ps = append(ps, rps...)
		if rel == nil {
			continue
		}
		key := strings.ToLower(rel.Name)
		if relSeen[key] {
			ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidRelation,
				"relation %q declared twice", rel.Name).WithField(rel.Name))
			continue
		}
		relSeen[key] = true
		relations = append(relations, *rel)
	}

	// 3) options
	opts := normalizeOptions(raw.Options)
	ps = append(ps, checkOptions(opts)...)

	if ps.HasErrors() {
		return nil, ps
	}
	return &ResourceSpec{
		name:      name,
		plural:    strings.TrimSpace(raw.Plural),
		fields:    fields,
		relations: relations,
		options:   opts,
	}, ps
}

func checkType(field string, st typereg.SemanticType, reg *typereg.Registry, targets []string) diag.Problems {
	var ps diag.Problems
	if !st.Kind.Known() {
		return append(ps, diag.Errorf(diag.StageSpec, diag.CodeUnknownType,
			"unknown semantic type %q", st).WithField(field))
	}
	if (st.Kind == typereg.KindEnum || st.Kind == typereg.KindReference) && st.Arg == "" {
		return append(ps, diag.Errorf(diag.StageSpec, diag.CodeUnknownType,
			"%s needs an argument, e.g. %s(name)", st.Kind, st.Kind).WithField(field))
	}
	for _, t := range targets {
		mapped := reg.Maps(st.Kind, t)
		if st.Kind == typereg.KindReference {
			// references are spelled as the target's identifier when the
			// target has no explicit reference mapping
			mapped = mapped || reg.Maps(typereg.KindIdentifier, t)
		}
		if !mapped {
			ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeUnmappedType,
				"semantic type %q has no mapping for target %q", st, t).WithField(field))
		}
	}
	return ps
}

func checkConstraints(f FieldSpec) diag.Problems {
	var ps diag.Problems
	c := f.Constraints
	if c.MinLength != nil && *c.MinLength < 0 {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidConstraint, "min length is negative").WithField(f.Name))
	}
	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidConstraint,
			"min length %d exceeds max length %d", *c.MinLength, *c.MaxLength).WithField(f.Name))
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidConstraint,
			"min %v exceeds max %v", *c.Min, *c.Max).WithField(f.Name))
	}
	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidConstraint,
				"pattern does not compile: %v", err).WithField(f.Name))
		}
	}
	return ps
}

// checkDefault parses a default against its field's kind and returns it in the
// spelling the targets emit verbatim.
func checkDefault(f FieldSpec, reg *typereg.Registry) (string, diag.Problems) {
	d := strings.TrimSpace(f.Default)
	if d == "" {
		return f.Default, nil
	}
	bad := func(format string, args ...any) (string, diag.Problems) {
		return f.Default, diag.Problems{diag.Errorf(diag.StageSpec, diag.CodeInvalidConstraint,
			"default %q "+format, append([]any{d}, args...)...).WithField(f.Name)}
	}
	switch f.Type.Kind {
	case typereg.KindInteger, typereg.KindIdentifier:
		if _, err := strconv.ParseInt(d, 10, 64); err != nil {
			return bad("is not an integer")
		}
	case typereg.KindDecimal:
		v, err := strconv.ParseFloat(d, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || strings.ContainsAny(d, "xX") {
			return bad("is not a decimal number")
		}
	case typereg.KindBoolean:
		b, ok := parseBool(d)
		if !ok {
			return bad("is not a boolean")
		}
		return strconv.FormatBool(b), nil
	case typereg.KindEnum:
		members, ok := reg.EnumMembers(f.Type.Arg)
		if ok && !slices.Contains(members, d) {
			return bad("is not a member of enum %s (%s)", f.Type.Arg, strings.Join(members, ", "))
		}
	case typereg.KindDate, typereg.KindTimestamp:
		if strings.EqualFold(d, "now") || strings.EqualFold(d, "now()") {
			break
		}
		layout := time.RFC3339
		if f.Type.Kind == typereg.KindDate {
			layout = time.DateOnly
		}
		if _, err := time.Parse(layout, d); err != nil {
			return bad("is not a %s (%s or now)", f.Type.Kind, layout)
		}
	}
	return d, nil
}

func buildRelation(rr RawRelation, self string, reg *typereg.Registry) (*RelationSpec, diag.Problems) {
	var ps diag.Problems
	name := strings.TrimSpace(rr.Name)
	if name == "" {
		name = strings.TrimSpace(rr.Target)
	}
	if !nameRe.MatchString(name) {
		return nil, append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidName,
			"relation name %q is not a valid identifier", rr.Name))
	}

	rel := &RelationSpec{
		Name:     name,
		Kind:     RelationKind(strings.ToLower(strings.TrimSpace(rr.Kind))),
		Target:   strings.TrimSpace(rr.Target),
		Cascade:  Cascade(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(rr.Cascade), "_", "-"))),
		Required: rr.Required,
		External: rr.External,
	}
	if rel.Cascade == "" {
		rel.Cascade = CascadeRestrict
	}

	switch rel.Kind {
	case ToOne, ToMany, ManyToMany:
	default:
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidRelation,
			"relation kind %q must be to-one, to-many or many-to-many", rr.Kind).WithField(name))
	}
	switch rel.Cascade {
	case CascadeRestrict, CascadeCascade, CascadeSetNull:
	default:
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidRelation,
			"cascade %q must be restrict, cascade or set-null", rr.Cascade).WithField(name))
	}

	if rel.Target == "" {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidRelation, "relation has no target").WithField(name))
	} else if !rel.External && !strings.EqualFold(rel.Target, self) && !reg.HasResource(rel.Target) {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeUnknownRelationTarget,
			"relation target %q is not a known resource; declare it or mark the relation external", rel.Target).WithField(name))
	}

	// link table columns are never null
	if rel.Kind == ManyToMany && rel.Cascade == CascadeSetNull {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidRelation,
			"many-to-many relation cannot cascade set-null; use cascade to drop the link or restrict").WithField(name))
	}
	if rel.Required && rel.Cascade == CascadeSetNull {
		ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeSetNullOnRequired,
			"required relation cannot cascade set-null; use restrict or make it optional").WithField(name))
	}
	return rel, ps
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String renders a short summary, handy in logs.
func (s *ResourceSpec) String() string {
	return fmt.Sprintf("%s(%d fields, %d relations)", s.name, len(s.fields), len(s.relations))
}
