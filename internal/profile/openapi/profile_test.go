package openapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"resforge/internal/artifact"
	"resforge/internal/consistency"
	"resforge/internal/naming"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

func ptr[T any](v T) *T { return &v }

func render(t *testing.T, raw spec.Raw) map[artifact.Kind]artifact.Rendered {
	t.Helper()
	p := New()
	reg := typereg.New()
	p.Install(reg)
	reg.RegisterEnum("priority", []string{"low", "high"})
	reg.RegisterResource(raw.Name, typereg.KindIdentifier)
	reg.RegisterResource("Project", typereg.KindIdentifier)
	s, ps := spec.Validate(raw, reg, p.Targets())
	require.False(t, ps.HasErrors(), "%v", ps)
	d := spec.Expand(s)

	out, err := artifact.NewRenderer(0, nil).RenderAll(context.Background(), p.Templates, artifact.Input{
		Spec: d, Names: naming.Derive(d.Name(), ""), Registry: reg, Conventions: p.Naming,
	})
	require.NoError(t, err)
	require.False(t, out.Problems.HasErrors(), "%v", out.Problems)
	assert.Empty(t, consistency.Check(out.Artifacts, d))

	m := map[artifact.Kind]artifact.Rendered{}
	for _, a := range out.Artifacts {
		m[a.Kind] = a
	}
	return m
}

func taskRaw() spec.Raw {
	return spec.Raw{
		Name: "TaskItem",
		Fields: []spec.RawField{
			{Name: "title", Type: "string", Required: true, MinLength: ptr(1), MaxLength: ptr(200)},
			{Name: "estimate", Type: "decimal", Min: ptr(0.5)},
			{Name: "priority", Type: "enum(priority)", Required: true, Default: "low"},
			{Name: "due_on", Type: "date", Visibility: spec.RawVisibility{Query: ptr(true)}},
		},
		Relations: []spec.RawRelation{{Name: "project", Kind: "to-one", Target: "Project", Required: true}},
		Options:   map[string]any{"pagination": true, "audit-fields": true},
	}
}

func decode(t *testing.T, a artifact.Rendered) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(a.Content), &doc), a.Content)
	return doc
}

func dig(t *testing.T, v any, keys ...string) any {
	t.Helper()
	for _, k := range keys {
		m, ok := v.(map[string]any)
		require.True(t, ok, "at %q: %T", k, v)
		v, ok = m[k]
		require.True(t, ok, "missing %q", k)
	}
	return v
}

func TestSchemas(t *testing.T) {
	arts := render(t, taskRaw())
	create := arts[artifact.KindCreate]
	assert.Equal(t, "openapi/task-items/create.yaml", create.Path)

	schema := dig(t, decode(t, create), "components", "schemas", "CreateTaskItemRequest")
	// priority has a default, so only title and the foreign key are required
	assert.Equal(t, []any{"title", "projectID"}, dig(t, schema, "required"))

	title := dig(t, schema, "properties", "title")
	assert.Equal(t, map[string]any{"type": "string", "minLength": 1, "maxLength": 200}, title)
	est := dig(t, schema, "properties", "estimate")
	assert.Equal(t, "decimal", dig(t, est, "format"))
	assert.Equal(t, true, dig(t, est, "nullable"))
	assert.Equal(t, 0.5, dig(t, est, "minimum"))
	prio := dig(t, schema, "properties", "priority")
	assert.Equal(t, []any{"low", "high"}, dig(t, prio, "enum"))
	assert.Equal(t, "low", dig(t, prio, "default"))

	resp := dig(t, decode(t, arts[artifact.KindResponse]), "components", "schemas", "TaskItemResponse")
	assert.Contains(t, dig(t, resp, "required"), "createdAt")
	assert.Contains(t, dig(t, resp, "required"), "priority")
	assert.Equal(t, "date-time", dig(t, resp, "properties", "createdAt", "format"))
}

func TestQueryParameters(t *testing.T) {
	arts := render(t, taskRaw())
	params := dig(t, decode(t, arts[artifact.KindQuery]), "components", "x-parameter-groups", "ListTaskItemsParameters").([]any)
	var names []string
	for _, p := range params {
		names = append(names, dig(t, p, "name").(string))
	}
	assert.Equal(t, []string{"page", "page_size", "id", "due_on", "project_id", "created_at", "updated_at"}, names)
}

func TestPaths(t *testing.T) {
	arts := render(t, taskRaw())
	doc := decode(t, arts[artifact.KindRoute])
	post := dig(t, doc, "paths", "/task-items", "post")
	assert.Equal(t, "createTaskItem", dig(t, post, "operationId"))
	assert.Equal(t, "#/components/schemas/CreateTaskItemRequest",
		dig(t, post, "requestBody", "content", "application/json", "schema", "$ref"))
	assert.Equal(t, "Conflict", dig(t, post, "responses", "409", "description"))

	item := dig(t, doc, "paths", "/task-items/{id}")
	param := dig(t, item, "parameters").([]any)[0]
	assert.Equal(t, "integer", dig(t, param, "schema", "type"))
	assert.Equal(t, "No Content", dig(t, item, "delete", "responses", "204", "description"))

	list := dig(t, doc, "paths", "/task-items", "get")
	assert.Equal(t, "#/components/x-parameter-groups/ListTaskItemsParameters", dig(t, list, "parameters", "$ref"))
}

func TestNoQueryWithoutPagination(t *testing.T) {
	raw := taskRaw()
	raw.Options = nil
	arts := render(t, raw)
	_, ok := arts[artifact.KindQuery]
	assert.False(t, ok)
	list := dig(t, decode(t, arts[artifact.KindRoute]), "paths", "/task-items", "get").(map[string]any)
	assert.NotContains(t, list, "parameters")
}
