// Package gogin is the Go target profile: a model, gin request and response
// contracts, a pgx repository, gin handlers, a binding test and a Postgres
// migration per resource.
package gogin

import (
	"go/format"
	"path"
	"sort"
	"strings"

	"resforge/internal/artifact"
	"resforge/internal/naming"
	"resforge/internal/profile"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

const (
	Name = "gogin"

	TargetGo       = "go"
	TargetPostgres = "postgres"
)

// GoTypes is the Go spelling of every semantic kind.
var GoTypes = typereg.Mapping{
	typereg.KindString:     {Spelling: "string", Tag: typereg.TagTextual},
	typereg.KindText:       {Spelling: "string", Tag: typereg.TagTextual},
	typereg.KindInteger:    {Spelling: "int64", Tag: typereg.TagNumeric},
	typereg.KindDecimal:    {Spelling: "decimal.Decimal", Tag: typereg.TagNumeric},
	typereg.KindBoolean:    {Spelling: "bool", Tag: typereg.TagBoolean},
	typereg.KindDate:       {Spelling: "time.Time", Tag: typereg.TagTemporal},
	typereg.KindTimestamp:  {Spelling: "time.Time", Tag: typereg.TagTemporal},
	typereg.KindIdentifier: {Spelling: "int64", Tag: typereg.TagNumeric},
	typereg.KindEnum:       {Spelling: "string", Tag: typereg.TagTextual},
}

// PostgresTypes is the column type of every semantic kind.
var PostgresTypes = typereg.Mapping{
	typereg.KindString:     {Spelling: "text", Tag: typereg.TagTextual},
	typereg.KindText:       {Spelling: "text", Tag: typereg.TagTextual},
	typereg.KindInteger:    {Spelling: "bigint", Tag: typereg.TagNumeric},
	typereg.KindDecimal:    {Spelling: "numeric(18,2)", Tag: typereg.TagNumeric},
	typereg.KindBoolean:    {Spelling: "boolean", Tag: typereg.TagBoolean},
	typereg.KindDate:       {Spelling: "date", Tag: typereg.TagTemporal},
	typereg.KindTimestamp:  {Spelling: "timestamp with time zone", Tag: typereg.TagTemporal},
	typereg.KindIdentifier: {Spelling: "bigint", Tag: typereg.TagNumeric},
	typereg.KindEnum:       {Spelling: "text", Tag: typereg.TagTextual},
}

func init() {
	profile.Register(New())
}

// New builds the profile. Callers that need a modified copy, tests mostly,
// can take the result apart.
func New() *profile.Profile {
	set := artifact.NewSet(Name).MustRegister(Templates()...)
	return &profile.Profile{
		Name:        Name,
		Description: "Go structs, gin handlers, pgx repository and Postgres migration",
		Types: map[string]typereg.Mapping{
			TargetGo:       GoTypes,
			TargetPostgres: PostgresTypes,
		},
		Templates: set,
		Naming:    naming.DefaultConventions(),
	}
}

func Templates() []artifact.Template {
	return []artifact.Template{
		{Kind: artifact.KindModel, Target: TargetGo, Filter: artifact.AllFields,
			Path: goFile("model.go"), Body: goBody(modelBody)},
		{Kind: artifact.KindCreate, Target: TargetGo, Filter: artifact.VisibleIn(artifact.KindCreate),
			Path: goFile("create_request.go"), Body: goBody(createBody)},
		{Kind: artifact.KindUpdate, Target: TargetGo, Filter: artifact.VisibleIn(artifact.KindUpdate),
			Path: goFile("update_request.go"), Body: goBody(updateBody)},
		{Kind: artifact.KindResponse, Target: TargetGo, Filter: artifact.VisibleIn(artifact.KindResponse),
			Path: goFile("response.go"), Body: goBody(responseBody)},
		{Kind: artifact.KindQuery, Target: TargetGo, Filter: artifact.VisibleIn(artifact.KindQuery),
			Path: goFile("query.go"), Body: goBody(queryBody), When: paginated},
		{Kind: artifact.KindAccess, Target: TargetGo, NameCase: naming.Snake, Filter: artifact.AllFields,
			Path: goFile("repository.go"), Body: goBody(accessBody)},
		{Kind: artifact.KindRoute, Target: TargetGo, Filter: onlyID,
			Path: goFile("handler.go"), Body: artifact.Formatted(routeBody, format.Source)},
		{Kind: artifact.KindTest, Target: TargetGo, Filter: artifact.VisibleIn(artifact.KindCreate),
			Path: goFile("handler_test.go"), Body: artifact.Formatted(testBody, format.Source)},
		{Kind: artifact.KindMigration, Target: TargetPostgres, NameCase: naming.Snake, Filter: artifact.AllFields,
			Path: migrationFile, Body: migrationBody},
	}
}

func paginated(s *spec.ResourceSpec) bool { return s.OptionBool(spec.OptPagination) }

func onlyID(f spec.FieldSpec) bool { return f.Name == spec.FieldID }

func goFile(name string) func(naming.Set) string {
	return func(n naming.Set) string { return path.Join("internal", n.Snake, name) }
}

func migrationFile(n naming.Set) string {
	return path.Join("db", "migrations", "create_"+tableName(n)+".sql")
}

// pkgName is the Go package of a resource: its snake name without
// underscores.
func pkgName(n naming.Set) string { return strings.ReplaceAll(n.Snake, "_", "") }

func goBody(fn func(c *artifact.Context, b *strings.Builder) error) artifact.Body {
	return func(c *artifact.Context) error {
		var b strings.Builder
		if err := fn(c, &b); err != nil {
			return err
		}
		src, err := format.Source([]byte(b.String()))
		if err != nil {
			return err
		}
		_, err = c.Write(src)
		return err
	}
}

const generatedHeader = "// Code generated by resforge. DO NOT EDIT.\n\n"

// writeHeader writes the header, package clause and grouped imports.
func writeHeader(b *strings.Builder, pkg string, imports []string) {
	b.WriteString(generatedHeader)
	b.WriteString("package " + pkg + "\n\n")
	if len(imports) == 0 {
		return
	}
	var std, ext []string
	for _, imp := range dedupe(imports) {
		if strings.Contains(strings.SplitN(imp, "/", 2)[0], ".") {
			ext = append(ext, imp)
		} else {
			std = append(std, imp)
		}
	}
	b.WriteString("import (\n")
	for _, imp := range std {
		b.WriteString("\t\"" + imp + "\"\n")
	}
	if len(std) > 0 && len(ext) > 0 {
		b.WriteString("\n")
	}
	for _, imp := range ext {
		b.WriteString("\t\"" + imp + "\"\n")
	}
	b.WriteString(")\n\n")
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// typeImports returns the packages the field types need.
func typeImports(fields []artifact.BoundField) []string {
	var out []string
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f.Type.Spelling, "time."):
			out = append(out, "time")
		case strings.HasPrefix(f.Type.Spelling, "decimal."):
			out = append(out, "github.com/shopspring/decimal")
		}
	}
	return out
}

// modelType is the Go type of a field in the model and response: optional
// fields are pointers.
func modelType(f artifact.BoundField) string {
	if f.Spec.Required {
		return f.Type.Spelling
	}
	return "*" + f.Type.Spelling
}

func jsonTag(f artifact.BoundField) string {
	if f.Spec.Required {
		return f.Names.Camel
	}
	return f.Names.Camel + ",omitempty"
}
