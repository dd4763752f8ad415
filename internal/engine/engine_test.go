package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resforge/internal/artifact"
	"resforge/internal/diag"
	"resforge/internal/emit"
	"resforge/internal/naming"
	"resforge/internal/profile"
	"resforge/internal/profile/gogin"
	_ "resforge/internal/profile/openapi"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

func ptr[T any](v T) *T { return &v }

func newEngine() *Engine {
	reg := typereg.New()
	reg.RegisterEnum("invoice_status", []string{"draft", "paid"})
	return New(reg, nil, 4)
}

func customer() spec.Raw {
	return spec.Raw{
		Name:   "Customer",
		Fields: []spec.RawField{{Name: "email", Type: "string", Required: true, Unique: true}},
	}
}

func invoice() spec.Raw {
	return spec.Raw{
		Name: "Invoice",
		Fields: []spec.RawField{
			{Name: "number", Type: "string", Required: true},
			{Name: "total", Type: "decimal", Required: true, Min: ptr(0.0)},
			{Name: "status", Type: "enum(invoice_status)", Default: "draft"},
		},
		Relations: []spec.RawRelation{{Name: "customer", Kind: "to-one", Target: "Customer", Required: true}},
		Options:   map[string]any{"audit-fields": true, "pagination": true},
	}
}

func TestGenerateWritesEverything(t *testing.T) {
	out := t.TempDir()
	e := newEngine()
	e.Registry.RegisterResource("Customer", typereg.KindIdentifier)

	res, err := e.Generate(context.Background(), Request{Raw: invoice(), Profile: gogin.Name, OutDir: out})
	require.NoError(t, err)
	require.NotNil(t, res.Manifest)
	assert.False(t, res.Problems.HasErrors(), "%v", res.Problems)
	assert.Equal(t, len(artifact.Order), res.Manifest.Count(emit.StatusWritten))
	assert.Equal(t, "invoices", res.Naming.Plural)
	assert.Len(t, res.Original.Fields(), 3)
	assert.True(t, res.Derived.Derived())

	for _, e := range res.Manifest.Entries {
		_, err := os.Stat(filepath.Join(out, filepath.FromSlash(e.Path)))
		assert.NoError(t, err, e.Path)
	}
	_, err = os.Stat(filepath.Join(out, ManifestDir, res.RunID+".json"))
	assert.NoError(t, err)

	// same input again changes nothing
	again, err := e.Generate(context.Background(), Request{Raw: invoice(), Profile: gogin.Name, OutDir: out})
	require.NoError(t, err)
	assert.Equal(t, len(artifact.Order), again.Manifest.Count(emit.StatusUnchanged))
	assert.NotEqual(t, res.RunID, again.RunID)
}

func TestGenerateInvalidSpec(t *testing.T) {
	raw := invoice()
	raw.Fields = append(raw.Fields, spec.RawField{Name: "Number", Type: "string"})
	res, err := newEngine().Generate(context.Background(), Request{Raw: raw, Profile: gogin.Name, OutDir: t.TempDir()})
	require.ErrorIs(t, err, ErrInvalidSpec)
	require.NotNil(t, res)
	assert.Nil(t, res.Manifest)
	assert.Empty(t, res.Artifacts)
	// the unknown relation target and the duplicate are reported together
	assert.Len(t, res.Problems.ByCode(diag.CodeDuplicateField), 1)
	assert.Len(t, res.Problems.ByCode(diag.CodeUnknownRelationTarget), 1)

	var de *diag.Error
	assert.True(t, errors.As(err, &de))
}

func TestGenerateUnknownProfile(t *testing.T) {
	res, err := newEngine().Generate(context.Background(), Request{Raw: customer(), Profile: "cobol"})
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestPreviewWritesNothing(t *testing.T) {
	out := t.TempDir()
	res, err := newEngine().Preview(context.Background(), Request{Raw: customer(), Profile: "openapi", OutDir: out})
	require.NoError(t, err)
	assert.True(t, res.Manifest.DryRun)
	assert.NotEmpty(t, res.Artifacts[0].Content)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// a profile whose update contract forgets a required field
func rogueProfile(t *testing.T) string {
	t.Helper()
	const name = "rogue-test"
	registerOnce.Do(func() {
		base := gogin.New()
		set := artifact.NewSet(name)
		for _, tmpl := range base.Templates.Templates() {
			if tmpl.Kind == artifact.KindUpdate {
				tmpl.Body = func(c *artifact.Context) error {
					for _, f := range c.Fields() {
						if f.Name() == "total" {
							continue
						}
						if _, err := c.Use(f.Name()); err != nil {
							return err
						}
					}
					c.Line("package rogue")
					return nil
				}
			}
			set.MustRegister(tmpl)
		}
		profile.Register(&profile.Profile{Name: name, Types: base.Types, Templates: set, Naming: base.Naming})
	})
	return name
}

var registerOnce sync.Once

func TestStrictWithholdsInconsistentOutput(t *testing.T) {
	name := rogueProfile(t)
	e := newEngine()
	e.Registry.RegisterResource("Customer", typereg.KindIdentifier)

	out := t.TempDir()
	res, err := e.Generate(context.Background(), Request{Raw: invoice(), Profile: name, OutDir: out, Strict: true})
	require.ErrorIs(t, err, ErrInconsistent)
	missing := res.Problems.ByCode(diag.CodeMissingRequiredField)
	require.Len(t, missing, 1)
	assert.Equal(t, "update", missing[0].Artifact)
	assert.Equal(t, "total", missing[0].Field)
	assert.Nil(t, res.Manifest)
	entries, _ := os.ReadDir(out)
	assert.Empty(t, entries)

	// without strict the files are written and the problem reported
	res, err = e.Generate(context.Background(), Request{Raw: invoice(), Profile: name, OutDir: out})
	require.NoError(t, err)
	assert.Len(t, res.Manifest.Problems.ByCode(diag.CodeMissingRequiredField), 1)
}

func TestGenerateAllResolvesForwardReferences(t *testing.T) {
	out := t.TempDir()
	// invoice comes first and references customer
	results, err := newEngine().GenerateAll(context.Background(), []Request{
		{Raw: invoice(), Profile: gogin.Name, OutDir: out},
		{Raw: customer(), Profile: gogin.Name, OutDir: out},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Problems.HasErrors(), "%v", r.Problems)
	}
	sql, err := os.ReadFile(filepath.Join(out, "db", "migrations", "create_invoices.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(sql), `references "customers"("id")`)
}

func TestGenerateAllJoinsFailures(t *testing.T) {
	bad := spec.Raw{Name: "Broken", Fields: []spec.RawField{{Name: "x", Type: "blob"}}}
	results, err := newEngine().GenerateAll(context.Background(), []Request{
		{Raw: bad, Profile: gogin.Name, OutDir: t.TempDir(), DryRun: true},
		{Raw: customer(), Profile: gogin.Name, OutDir: t.TempDir(), DryRun: true},
	})
	require.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), "Broken")
	assert.NotNil(t, results[1].Manifest)
}

func TestRenameRegeneratesEveryName(t *testing.T) {
	widget := spec.Raw{Name: "Widget", Fields: []spec.RawField{{Name: "label", Type: "string", Required: true}}}
	gadget := widget
	gadget.Name = "Gadget"

	e := newEngine()
	a, err := e.Preview(context.Background(), Request{Raw: widget, Profile: gogin.Name, OutDir: t.TempDir()})
	require.NoError(t, err)
	b, err := e.Preview(context.Background(), Request{Raw: gadget, Profile: gogin.Name, OutDir: t.TempDir()})
	require.NoError(t, err)

	require.Equal(t, len(a.Artifacts), len(b.Artifacts))
	for i := range a.Artifacts {
		assert.NotContains(t, b.Artifacts[i].Content, "Widget")
		assert.NotContains(t, b.Artifacts[i].Content, "widget")
		renamed := strings.NewReplacer("Widget", "Gadget", "widget", "gadget").Replace(a.Artifacts[i].Content)
		assert.Equal(t, renamed, b.Artifacts[i].Content, a.Artifacts[i].Kind)
	}
	assert.Equal(t, naming.Derive("Gadget", "").Path, b.Naming.Path)
}

func TestValidate(t *testing.T) {
	e := newEngine()
	e.Registry.RegisterResource("Customer", typereg.KindIdentifier)
	res, err := e.Validate(gogin.Name, invoice(), map[string][]string{"extra": {"a"}})
	require.NoError(t, err)
	assert.Equal(t, "Invoice", res.Original.Name())
	_, ok := res.Derived.Field("created_at")
	assert.True(t, ok)
	assert.Empty(t, res.Artifacts)

	// run enums do not leak into the engine's registry
	_, ok = e.Registry.EnumMembers("extra")
	assert.False(t, ok)
}

func TestExternalRelationTargets(t *testing.T) {
	raw := spec.Raw{
		Name:      "Comment",
		Fields:    []spec.RawField{{Name: "body", Type: "text", Required: true}},
		Relations: []spec.RawRelation{{Name: "author", Kind: "to-one", Target: "User", External: true}},
	}
	res, err := newEngine().Preview(context.Background(), Request{Raw: raw, Profile: gogin.Name})
	require.NoError(t, err)
	for _, a := range res.Artifacts {
		if a.Kind == artifact.KindMigration {
			assert.Contains(t, a.Content, "managed elsewhere")
		}
	}
}

func TestConcurrentGenerate(t *testing.T) {
	e := newEngine()
	e.Registry.RegisterResource("Customer", typereg.KindIdentifier)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Preview(context.Background(), Request{Raw: invoice(), Profile: gogin.Name, OutDir: t.TempDir()})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
