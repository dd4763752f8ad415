// Package openapi renders OpenAPI 3 fragments: request and response schemas,
// list parameters and the resource's paths.
package openapi

import (
	"bytes"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"resforge/internal/artifact"
	"resforge/internal/naming"
	"resforge/internal/profile"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

const (
	Name   = "openapi"
	Target = "openapi"
)

// Types spell a schema as "type" or "type:format".
var Types = typereg.Mapping{
	typereg.KindString:     {Spelling: "string", Tag: typereg.TagTextual},
	typereg.KindText:       {Spelling: "string", Tag: typereg.TagTextual},
	typereg.KindInteger:    {Spelling: "integer:int64", Tag: typereg.TagNumeric},
	typereg.KindDecimal:    {Spelling: "number:decimal", Tag: typereg.TagNumeric},
	typereg.KindBoolean:    {Spelling: "boolean", Tag: typereg.TagBoolean},
	typereg.KindDate:       {Spelling: "string:date", Tag: typereg.TagTemporal},
	typereg.KindTimestamp:  {Spelling: "string:date-time", Tag: typereg.TagTemporal},
	typereg.KindIdentifier: {Spelling: "integer:int64", Tag: typereg.TagNumeric},
	typereg.KindEnum:       {Spelling: "string", Tag: typereg.TagTextual},
}

func init() {
	profile.Register(New())
}

func New() *profile.Profile {
	set := artifact.NewSet(Name).MustRegister(
		artifact.Template{Kind: artifact.KindCreate, Target: Target, NameCase: naming.Camel,
			Filter: artifact.VisibleIn(artifact.KindCreate), Path: file("create"), Body: schemaBody("Create%sRequest")},
		artifact.Template{Kind: artifact.KindUpdate, Target: Target, NameCase: naming.Camel,
			Filter: artifact.VisibleIn(artifact.KindUpdate), Path: file("update"), Body: schemaBody("Update%sRequest")},
		artifact.Template{Kind: artifact.KindResponse, Target: Target, NameCase: naming.Camel,
			Filter: artifact.VisibleIn(artifact.KindResponse), Path: file("response"), Body: schemaBody("%sResponse")},
		artifact.Template{Kind: artifact.KindQuery, Target: Target, NameCase: naming.Snake,
			Filter: artifact.VisibleIn(artifact.KindQuery), Path: file("query"), Body: queryBody,
			When: func(s *spec.ResourceSpec) bool { return s.OptionBool(spec.OptPagination) }},
		artifact.Template{Kind: artifact.KindRoute, Target: Target, NameCase: naming.Snake,
			Filter: func(f spec.FieldSpec) bool { return f.Name == spec.FieldID }, Path: file("paths"), Body: pathsBody},
	)
	return &profile.Profile{
		Name:        Name,
		Description: "OpenAPI 3 schemas and paths",
		Types:       map[string]typereg.Mapping{Target: Types},
		Templates:   set,
		Naming:      naming.Conventions{Type: naming.Pascal, Field: naming.Camel, Column: naming.Snake, Path: naming.Kebab},
	}
}

func file(kind string) func(naming.Set) string {
	return func(n naming.Set) string { return path.Join("openapi", n.Path, kind+".yaml") }
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func number(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func boolean(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
}

// mapping builds an ordered mapping from key, value pairs.
func mapping(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Content = append(n.Content, scalar(kv[i].(string)), value(kv[i+1]))
	}
	return n
}

func sequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

func value(v any) *yaml.Node {
	switch v := v.(type) {
	case *yaml.Node:
		return v
	case string:
		return scalar(v)
	case bool:
		return boolean(v)
	case int:
		return number(strconv.Itoa(v))
	}
	panic(fmt.Sprintf("openapi: unsupported value %T", v))
}

func ref(schema string) *yaml.Node {
	return mapping("$ref", "#/components/schemas/"+schema)
}

// fieldSchema is the property schema of one field.
func fieldSchema(f artifact.BoundField) *yaml.Node {
	typ, format, _ := strings.Cut(f.Type.Spelling, ":")
	n := mapping("type", typ)
	if format != "" {
		n.Content = append(n.Content, scalar("format"), scalar(format))
	}
	if !f.Spec.Required {
		n.Content = append(n.Content, scalar("nullable"), boolean(true))
	}
	cs := f.Spec.Constraints
	add := func(k string, v *yaml.Node) { n.Content = append(n.Content, scalar(k), v) }
	if cs.MinLength != nil {
		add("minLength", number(strconv.Itoa(*cs.MinLength)))
	}
	if cs.MaxLength != nil {
		add("maxLength", number(strconv.Itoa(*cs.MaxLength)))
	}
	if cs.Min != nil {
		add("minimum", number(strconv.FormatFloat(*cs.Min, 'f', -1, 64)))
	}
	if cs.Max != nil {
		add("maximum", number(strconv.FormatFloat(*cs.Max, 'f', -1, 64)))
	}
	if cs.Pattern != "" {
		add("pattern", scalar(cs.Pattern))
	}
	if len(f.Enum) > 0 {
		var members []*yaml.Node
		for _, m := range f.Enum {
			members = append(members, scalar(m))
		}
		add("enum", sequence(members...))
	}
	if d := f.Spec.Default; d != "" {
		if f.Type.Tag == typereg.TagNumeric || f.Type.Tag == typereg.TagBoolean {
			add("default", number(d))
		} else {
			add("default", scalar(d))
		}
	}
	return n
}

func encode(c *artifact.Context, doc *yaml.Node) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	c.Line("# Code generated by resforge. DO NOT EDIT.")
	_, err := c.Write(buf.Bytes())
	return err
}

// schemaBody renders one components/schemas entry named after the format.
func schemaBody(nameFormat string) artifact.Body {
	return func(c *artifact.Context) error {
		name := fmt.Sprintf(nameFormat, c.Names.Declaration)
		props := mapping()
		var required []*yaml.Node
		for _, f := range c.Each() {
			props.Content = append(props.Content, scalar(f.Ident), fieldSchema(f))
			if f.Spec.RequiredIn(string(c.Kind)) && (c.Kind == artifact.KindResponse || f.Spec.Default == "") {
				required = append(required, scalar(f.Ident))
			}
		}
		schema := mapping("type", "object")
		if len(required) > 0 {
			schema.Content = append(schema.Content, scalar("required"), sequence(required...))
		}
		schema.Content = append(schema.Content, scalar("properties"), props)
		return encode(c, mapping("components", mapping("schemas", mapping(name, schema))))
	}
}

func queryBody(c *artifact.Context) error {
	params := []*yaml.Node{
		mapping("name", "page", "in", "query", "schema", mapping("type", "integer", "minimum", 1)),
		mapping("name", "page_size", "in", "query", "schema", mapping("type", "integer", "minimum", 1, "maximum", 100)),
	}
	for _, f := range c.Each() {
		params = append(params, mapping("name", f.Ident, "in", "query", "required", false, "schema", fieldSchema(f)))
	}
	name := "List" + c.Names.PluralDeclaration + "Parameters"
	return encode(c, mapping("components", mapping("x-parameter-groups", mapping(name, sequence(params...)))))
}

func pathsBody(c *artifact.Context) error {
	id, err := c.Use(spec.FieldID)
	if err != nil {
		return err
	}
	n := c.Names
	idParam := mapping("name", id.Ident, "in", "path", "required", true, "schema", fieldSchema(id))
	resp := func(code, desc string, schema *yaml.Node) *yaml.Node {
		r := mapping("description", desc)
		if schema != nil {
			r.Content = append(r.Content, scalar("content"), mapping("application/json", mapping("schema", schema)))
		}
		return mapping(code, r)
	}
	body := func(schema string) *yaml.Node {
		return mapping("required", true, "content", mapping("application/json", mapping("schema", ref(schema))))
	}
	errs := func(m *yaml.Node, codes ...string) *yaml.Node {
		for _, code := range codes {
			m.Content = append(m.Content, scalar(code), mapping("description", statusText(code)))
		}
		return m
	}

	list := mapping("operationId", "list"+n.PluralDeclaration, "tags", sequence(scalar(n.Path)))
	if c.OptionBool(spec.OptPagination) {
		list.Content = append(list.Content, scalar("parameters"),
			mapping("$ref", "#/components/x-parameter-groups/List"+n.PluralDeclaration+"Parameters"))
	}
	list.Content = append(list.Content, scalar("responses"),
		resp("200", "OK", mapping("type", "object", "properties", mapping("items", mapping("type", "array", "items", ref(n.Declaration+"Response"))))))

	collection := mapping(
		"get", list,
		"post", mapping("operationId", "create"+n.Declaration, "tags", sequence(scalar(n.Path)),
			"requestBody", body("Create"+n.Declaration+"Request"),
			"responses", errs(resp("201", "Created", ref(n.Declaration+"Response")), "400", "409", "422")),
	)
	item := mapping(
		"parameters", sequence(idParam),
		"get", mapping("operationId", "get"+n.Declaration, "tags", sequence(scalar(n.Path)),
			"responses", errs(resp("200", "OK", ref(n.Declaration+"Response")), "404")),
		"put", mapping("operationId", "update"+n.Declaration, "tags", sequence(scalar(n.Path)),
			"requestBody", body("Update"+n.Declaration+"Request"),
			"responses", errs(resp("200", "OK", ref(n.Declaration+"Response")), "400", "404", "409")),
		"delete", mapping("operationId", "delete"+n.Declaration, "tags", sequence(scalar(n.Path)),
			"responses", errs(resp("204", "No Content", nil), "404", "422")),
	)
	return encode(c, mapping("paths", mapping(
		"/"+n.Path, collection,
		"/"+n.Path+"/{"+id.Ident+"}", item,
	)))
}

func statusText(code string) string {
	n, _ := strconv.Atoi(code)
	return http.StatusText(n)
}
