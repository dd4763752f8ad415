package artifact

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resforge/internal/diag"
	"resforge/internal/naming"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

func testInput(t *testing.T, raw spec.Raw) Input {
	t.Helper()
	reg := typereg.New()
	reg.RegisterTarget("go", typereg.Mapping{
		typereg.KindString:     {Spelling: "string", Tag: typereg.TagTextual},
		typereg.KindDecimal:    {Spelling: "float64", Tag: typereg.TagNumeric},
		typereg.KindIdentifier: {Spelling: "int64", Tag: typereg.TagNumeric},
		typereg.KindEnum:       {Spelling: "string", Tag: typereg.TagTextual},
	})
	reg.RegisterResource(raw.Name, typereg.KindIdentifier)
	reg.RegisterEnum("status", []string{"draft", "paid"})
	s, ps := spec.Validate(raw, reg, nil)
	require.False(t, ps.HasErrors(), "%v", ps)
	d := spec.Expand(s)
	return Input{Spec: d, Names: naming.Derive(d.Name(), ""), Registry: reg, Conventions: naming.DefaultConventions()}
}

func invoice() spec.Raw {
	return spec.Raw{
		Name: "Invoice",
		Fields: []spec.RawField{
			{Name: "number", Type: "string", Required: true},
			{Name: "total", Type: "decimal", Required: true},
			{Name: "status", Type: "enum(status)"},
		},
	}
}

func pathOf(kind string) func(naming.Set) string {
	return func(n naming.Set) string { return n.Snake + "/" + kind + ".txt" }
}

func TestRenderRecordsReferences(t *testing.T) {
	in := testInput(t, invoice())
	body := MustTextBody("model", `{{range .Each}}{{.Ident}} {{.Type.Spelling}}
{{end}}`, nil)
	tmpl := Template{Kind: KindModel, Target: "go", Path: pathOf("model"), Body: body}

	out, ps := NewRenderer(1, nil).Render(tmpl, in)
	require.Empty(t, ps)
	assert.Equal(t, "ID int64\nNumber string\nTotal float64\nStatus string\n", out.Content)
	assert.Equal(t, []string{"id", "number", "total", "status"}, out.ReferencedNames())
	assert.Equal(t, out.EffectiveFields, out.ReferencedNames())
	assert.Equal(t, "invoice/model.txt", out.Path)
}

func TestRenderFirstReferenceWins(t *testing.T) {
	in := testInput(t, invoice())
	tmpl := Template{Kind: KindCreate, Target: "go", NameCase: naming.Snake, Filter: VisibleIn(KindCreate), Path: pathOf("create"),
		Body: func(c *Context) error {
			if _, err := c.UseAs("total", typereg.ConcreteType{Spelling: "string", Tag: typereg.TagTextual}); err != nil {
				return err
			}
			_, err := c.Use("total")
			return err
		}}
	out, ps := NewRenderer(1, nil).Render(tmpl, in)
	require.Empty(t, ps)
	ref, ok := out.Reference("total")
	require.True(t, ok)
	assert.Equal(t, typereg.TagTextual, ref.Type.Tag)
	assert.Equal(t, "total", ref.Emitted)
	assert.Len(t, out.ReferencedFields, 1)
	assert.NotContains(t, out.EffectiveFields, "id")
}

func TestRenderFieldNotInScope(t *testing.T) {
	in := testInput(t, invoice())
	tmpl := Template{Kind: KindCreate, Target: "go", Filter: VisibleIn(KindCreate), Path: pathOf("create"),
		Body: func(c *Context) error {
			_, err := c.Use("id")
			return err
		}}
	out, ps := NewRenderer(1, nil).Render(tmpl, in)
	assert.True(t, out.Failed)
	assert.Empty(t, out.Content)
	require.Len(t, ps, 1)
	assert.Equal(t, diag.CodeFieldNotInScope, ps[0].Code)
	assert.Equal(t, "create", ps[0].Artifact)
}

func TestRenderUnresolvedType(t *testing.T) {
	in := testInput(t, invoice())
	reg := in.Registry.Snapshot()
	reg.RegisterTarget("sql", typereg.Mapping{
		typereg.KindString:     {Spelling: "text", Tag: typereg.TagTextual},
		typereg.KindIdentifier: {Spelling: "bigint", Tag: typereg.TagNumeric},
	})
	in.Registry = reg
	each := MustTextBody("each", `{{range .Each}}{{.Ident}}{{end}}`, nil)

	// required field in a model: the artifact fails
	model := Template{Kind: KindModel, Target: "sql", Path: pathOf("model"), Body: each}
	out, ps := NewRenderer(1, nil).Render(model, in)
	assert.True(t, out.Failed)
	assert.Len(t, ps.Errors().ByCode(diag.CodeTypeUnresolved), 1)
	assert.Len(t, ps.Warnings().ByCode(diag.CodeTypeUnresolved), 1)

	// optional fields are left out with a warning
	resp := Template{Kind: KindResponse, Target: "sql", Filter: func(f spec.FieldSpec) bool { return f.Name != "total" }, Path: pathOf("response"), Body: each}
	out, ps = NewRenderer(1, nil).Render(resp, in)
	assert.False(t, out.Failed)
	assert.False(t, ps.HasErrors())
	assert.Equal(t, []string{"id", "number"}, out.EffectiveFields)
}

func TestRenderAllIsolatesFailures(t *testing.T) {
	in := testInput(t, invoice())
	set := NewSet("test").MustRegister(
		Template{Kind: KindModel, Target: "go", Path: pathOf("model"), Body: MustTextBody("m", `{{range .Each}}{{.Ident}};{{end}}`, nil)},
		Template{Kind: KindRoute, Target: "go", Path: pathOf("route"), Body: func(*Context) error { return fmt.Errorf("boom") }},
		Template{Kind: KindQuery, Target: "go", Path: pathOf("query"), Body: MustTextBody("q", `x`, nil),
			When: func(s *spec.ResourceSpec) bool { return s.OptionBool(spec.OptPagination) }},
	)
	out, err := NewRenderer(4, nil).RenderAll(context.Background(), set, in)
	require.NoError(t, err)
	require.Len(t, out.Artifacts, 2)
	assert.Equal(t, KindModel, out.Artifacts[0].Kind)
	assert.False(t, out.Artifacts[0].Failed)
	assert.True(t, out.Artifacts[1].Failed)
	assert.Len(t, out.Problems.ByCode(diag.CodeRenderFailed), 1)
}

func TestRenderAllRunsConcurrently(t *testing.T) {
	in := testInput(t, invoice())
	var running, peak atomic.Int32
	slow := func(c *Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		c.Each()
		return nil
	}
	set := NewSet("slow")
	for _, k := range []Kind{KindModel, KindResponse, KindAccess, KindTest} {
		set.MustRegister(Template{Kind: k, Target: "go", Path: pathOf(string(k)), Body: slow})
	}
	out, err := NewRenderer(4, nil).RenderAll(context.Background(), set, in)
	require.NoError(t, err)
	assert.Len(t, out.Artifacts, 4)
	assert.Greater(t, peak.Load(), int32(1))
}

func TestRenderAllCanceled(t *testing.T) {
	in := testInput(t, invoice())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	set := NewSet("c").MustRegister(Template{Kind: KindModel, Target: "go", Path: pathOf("model"), Body: func(*Context) error { return nil }})
	_, err := NewRenderer(1, nil).RenderAll(ctx, set, in)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetRegister(t *testing.T) {
	s := NewSet("x")
	ok := Template{Kind: KindModel, Target: "go", Path: pathOf("m"), Body: func(*Context) error { return nil }}
	require.NoError(t, s.Register(ok))
	assert.Error(t, s.Register(ok))

	noBody := ok
	noBody.Kind, noBody.Body = KindTest, nil
	assert.Error(t, s.Register(noBody))

	s.MustRegister(Template{Kind: "zeta", Target: "sql", Path: pathOf("z"), Body: ok.Body})
	s.MustRegister(Template{Kind: KindMigration, Target: "sql", Path: pathOf("mig"), Body: ok.Body})
	var kinds []string
	for _, t := range s.Templates() {
		kinds = append(kinds, string(t.Kind))
	}
	assert.Equal(t, "model,migration,zeta", strings.Join(kinds, ","))
	assert.Equal(t, []string{"go", "sql"}, s.Targets())
}

func TestFormatted(t *testing.T) {
	in := testInput(t, invoice())
	body := Formatted(MustTextBody("f", "hello {{.Names.Declaration}}", nil), func(b []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(b))), nil
	})
	out, ps := NewRenderer(1, nil).Render(Template{Kind: KindModel, Target: "go", Path: pathOf("m"), Body: body}, in)
	require.Empty(t, ps)
	assert.Equal(t, "HELLO INVOICE", out.Content)
}
