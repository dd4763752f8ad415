package gogin

import (
	"fmt"
	"strconv"
	"strings"

	"resforge/internal/artifact"
	"resforge/internal/typereg"
)

func createBody(c *artifact.Context, b *strings.Builder) error {
	return requestBody(c, b, "Create"+c.Names.Declaration+"Request")
}

func updateBody(c *artifact.Context, b *strings.Builder) error {
	return requestBody(c, b, "Update"+c.Names.Declaration+"Request")
}

// requestBody writes a request contract. Every field is a pointer so that a
// missing value is told apart from a zero one; presence of required fields
// is enforced with binding:"required".
func requestBody(c *artifact.Context, b *strings.Builder, typ string) error {
	fields := c.Each()
	kind := string(c.Kind)

	imports := typeImports(fields)
	checks := valueChecks(fields)
	if len(checks) > 0 {
		imports = append(imports, "fmt")
	}
	for _, f := range checks {
		if f.Spec.Constraints.Pattern != "" {
			imports = append(imports, "regexp")
		}
	}
	writeHeader(b, pkgName(c.Names), imports)

	var patterns []string
	for _, f := range checks {
		if p := f.Spec.Constraints.Pattern; p != "" {
			v := patternVar(c, f)
			patterns = append(patterns, fmt.Sprintf("\t%s = regexp.MustCompile(%s)\n", v, strconv.Quote(p)))
		}
	}
	if len(patterns) > 0 {
		b.WriteString("var (\n" + strings.Join(patterns, "") + ")\n\n")
	}

	fmt.Fprintf(b, "// %s is the body of a %s %s request.\n", typ, kind, c.Names.Human)
	fmt.Fprintf(b, "type %s struct {\n", typ)
	for _, f := range fields {
		fmt.Fprintf(b, "\t%s *%s `json:%q binding:%q`\n", f.Ident, f.Type.Spelling, f.Names.Camel+",omitempty", bindingRules(f, kind))
	}
	b.WriteString("}\n\n")

	// range and pattern checks the binding tags cannot express
	fmt.Fprintf(b, "func (r %s) Validate() error {\n", typ)
	for _, f := range checks {
		cs := f.Spec.Constraints
		if cs.Pattern != "" {
			fmt.Fprintf(b, "\tif r.%s != nil && !%s.MatchString(*r.%s) {\n", f.Ident, patternVar(c, f), f.Ident)
			fmt.Fprintf(b, "\t\treturn fmt.Errorf(\"%s: must match %%s\", %s)\n\t}\n", f.Names.Camel, patternVar(c, f))
		}
		if f.Spec.Type.Kind == typereg.KindDecimal {
			if cs.Min != nil {
				fmt.Fprintf(b, "\tif r.%s != nil && r.%s.LessThan(decimal.NewFromFloat(%v)) {\n", f.Ident, f.Ident, *cs.Min)
				fmt.Fprintf(b, "\t\treturn fmt.Errorf(\"%s: must be at least %v\")\n\t}\n", f.Names.Camel, *cs.Min)
			}
			if cs.Max != nil {
				fmt.Fprintf(b, "\tif r.%s != nil && r.%s.GreaterThan(decimal.NewFromFloat(%v)) {\n", f.Ident, f.Ident, *cs.Max)
				fmt.Fprintf(b, "\t\treturn fmt.Errorf(\"%s: must be at most %v\")\n\t}\n", f.Names.Camel, *cs.Max)
			}
		}
	}
	b.WriteString("\treturn nil\n}\n\n")

	if c.Kind == artifact.KindCreate {
		fmt.Fprintf(b, "// Model builds a new %s from the request.\n", c.Names.Declaration)
		fmt.Fprintf(b, "func (r %s) Model() %s {\n\tvar m %s\n", typ, c.Names.Declaration, c.Names.Declaration)
	} else {
		fmt.Fprintf(b, "// Apply replaces the updatable fields of m.\n")
		fmt.Fprintf(b, "func (r %s) Apply(m *%s) {\n", typ, c.Names.Declaration)
	}
	for _, f := range fields {
		writeAssign(b, f, kind, c.Kind == artifact.KindCreate)
	}
	if c.Kind == artifact.KindCreate {
		b.WriteString("\treturn m\n")
	}
	b.WriteString("}\n")
	return nil
}

func writeAssign(b *strings.Builder, f artifact.BoundField, kind string, withDefault bool) {
	lit := ""
	if withDefault {
		lit = goDefault(f)
	}
	switch {
	case !f.Spec.Required:
		fmt.Fprintf(b, "\tm.%s = r.%s\n", f.Ident, f.Ident)
		if lit != "" {
			fmt.Fprintf(b, "\tif m.%s == nil {\n\t\tv := %s\n\t\tm.%s = &v\n\t}\n", f.Ident, typedLiteral(f, lit), f.Ident)
		}
	case bindingRequired(f, kind):
		fmt.Fprintf(b, "\tm.%s = *r.%s\n", f.Ident, f.Ident)
	default:
		fmt.Fprintf(b, "\tif r.%s != nil {\n\t\tm.%s = *r.%s\n\t}", f.Ident, f.Ident, f.Ident)
		if lit != "" {
			fmt.Fprintf(b, " else {\n\t\tm.%s = %s\n\t}", f.Ident, lit)
		}
		b.WriteString("\n")
	}
}

// typedLiteral keeps untyped constants from defaulting to int or float64
// when assigned through a temporary.
func typedLiteral(f artifact.BoundField, lit string) string {
	switch f.Spec.Type.Kind {
	case typereg.KindInteger, typereg.KindIdentifier:
		return f.Type.Spelling + "(" + lit + ")"
	}
	return lit
}

func bindingRequired(f artifact.BoundField, kind string) bool {
	return f.Spec.RequiredIn(kind) && f.Spec.Default == ""
}

// bindingRules renders the validator rules of a request field.
func bindingRules(f artifact.BoundField, kind string) string {
	var rules []string
	if bindingRequired(f, kind) {
		rules = append(rules, "required")
	} else {
		rules = append(rules, "omitempty")
	}
	cs := f.Spec.Constraints
	switch f.Spec.Type.Kind {
	case typereg.KindString, typereg.KindText:
		if cs.MinLength != nil {
			rules = append(rules, "min="+strconv.Itoa(*cs.MinLength))
		}
		if cs.MaxLength != nil {
			rules = append(rules, "max="+strconv.Itoa(*cs.MaxLength))
		}
	case typereg.KindInteger:
		if cs.Min != nil {
			rules = append(rules, "gte="+strconv.FormatFloat(*cs.Min, 'f', -1, 64))
		}
		if cs.Max != nil {
			rules = append(rules, "lte="+strconv.FormatFloat(*cs.Max, 'f', -1, 64))
		}
	case typereg.KindEnum:
		var members []string
		for _, m := range f.Enum {
			if !strings.ContainsAny(m, " ,") {
				members = append(members, m)
			}
		}
		if len(members) > 0 && len(members) == len(f.Enum) {
			rules = append(rules, "oneof="+strings.Join(members, " "))
		}
	}
	return strings.Join(rules, ",")
}

// valueChecks are the fields Validate has to look at.
func valueChecks(fields []artifact.BoundField) []artifact.BoundField {
	var out []artifact.BoundField
	for _, f := range fields {
		cs := f.Spec.Constraints
		isDecimal := f.Spec.Type.Kind == typereg.KindDecimal && (cs.Min != nil || cs.Max != nil)
		isPattern := cs.Pattern != "" && f.Type.Tag == typereg.TagTextual
		if isDecimal || isPattern {
			if !isPattern {
				f.Spec.Constraints.Pattern = ""
			}
			out = append(out, f)
		}
	}
	return out
}

func patternVar(c *artifact.Context, f artifact.BoundField) string {
	return string(c.Kind) + c.Names.Declaration + f.Names.Pascal + "Pattern"
}

// goDefault is the Go literal of a field default, empty when the default
// has no literal form in the model type.
func goDefault(f artifact.BoundField) string {
	d := strings.TrimSpace(f.Spec.Default)
	if d == "" {
		return ""
	}
	switch f.Spec.Type.Kind {
	case typereg.KindString, typereg.KindText, typereg.KindEnum:
		return strconv.Quote(d)
	case typereg.KindInteger:
		if _, err := strconv.ParseInt(d, 10, 64); err == nil {
			return d
		}
	case typereg.KindBoolean:
		if v, err := strconv.ParseBool(d); err == nil {
			return strconv.FormatBool(v)
		}
	case typereg.KindDecimal:
		if _, err := strconv.ParseFloat(d, 64); err == nil {
			return "decimal.RequireFromString(" + strconv.Quote(d) + ")"
		}
	case typereg.KindTimestamp, typereg.KindDate:
		if strings.EqualFold(d, "now") || strings.EqualFold(d, "now()") {
			return "time.Now()"
		}
	}
	return ""
}

func responseBody(c *artifact.Context, b *strings.Builder) error {
	fields := c.Each()
	typ := c.Names.Declaration + "Response"
	writeHeader(b, pkgName(c.Names), typeImports(fields))

	fmt.Fprintf(b, "// %s is what the API returns for one %s.\n", typ, c.Names.Human)
	fmt.Fprintf(b, "type %s struct {\n", typ)
	for _, f := range fields {
		fmt.Fprintf(b, "\t%s %s `json:%q`\n", f.Ident, modelType(f), jsonTag(f))
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func New%s(m %s) %s {\n\treturn %s{\n", typ, c.Names.Declaration, typ, typ)
	for _, f := range fields {
		fmt.Fprintf(b, "\t\t%s: m.%s,\n", f.Ident, f.Ident)
	}
	b.WriteString("\t}\n}\n\n")

	fmt.Fprintf(b, "func New%sList(ms []%s) []%s {\n", typ, c.Names.Declaration, typ)
	fmt.Fprintf(b, "\tout := make([]%s, 0, len(ms))\n\tfor _, m := range ms {\n\t\tout = append(out, New%s(m))\n\t}\n\treturn out\n}\n", typ, typ)
	return nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func queryBody(c *artifact.Context, b *strings.Builder) error {
	fields := c.Each()
	typ := "List" + c.Names.PluralDeclaration + "Query"
	writeHeader(b, pkgName(c.Names), typeImports(fields))

	fmt.Fprintf(b, "const (\n\tDefaultPageSize = %d\n\tMaxPageSize     = %d\n)\n\n", defaultPageSize, maxPageSize)
	fmt.Fprintf(b, "// %s holds the page and the filters of a %s listing.\n", typ, c.Names.Human)
	fmt.Fprintf(b, "type %s struct {\n", typ)
	b.WriteString("\tPage     int `form:\"page\" binding:\"omitempty,min=1\"`\n")
	fmt.Fprintf(b, "\tPageSize int `form:\"page_size\" binding:\"omitempty,min=1,max=%d\"`\n", maxPageSize)
	for _, f := range fields {
		tag := fmt.Sprintf("form:%q", f.Names.Column)
		if f.Type.Tag == typereg.TagTemporal {
			tag += " time_format:\"2006-01-02T15:04:05Z07:00\""
		}
		fmt.Fprintf(b, "\t%s *%s `%s`\n", f.Ident, f.Type.Spelling, tag)
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func (q %s) Limit() int {\n", typ)
	b.WriteString("\tif q.PageSize <= 0 {\n\t\treturn DefaultPageSize\n\t}\n")
	b.WriteString("\tif q.PageSize > MaxPageSize {\n\t\treturn MaxPageSize\n\t}\n\treturn q.PageSize\n}\n\n")
	fmt.Fprintf(b, "func (q %s) Offset() int {\n", typ)
	b.WriteString("\tif q.Page <= 1 {\n\t\treturn 0\n\t}\n\treturn (q.Page - 1) * q.Limit()\n}\n\n")

	fmt.Fprintf(b, "// Filters returns the set filters keyed by column.\nfunc (q %s) Filters() map[string]any {\n", typ)
	b.WriteString("\tf := map[string]any{}\n")
	for _, f := range fields {
		fmt.Fprintf(b, "\tif q.%s != nil {\n\t\tf[%q] = *q.%s\n\t}\n", f.Ident, f.Names.Column, f.Ident)
	}
	b.WriteString("\treturn f\n}\n")
	return nil
}
