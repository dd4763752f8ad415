package dsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resforge/internal/spec"
	"resforge/internal/typereg"
)

const invoiceDSL = `# billing
resource invoice:
  plural: invoices
  options: audit-fields pagination soft-delete=timestamp
  number: string required unique max_length=32 pattern='^INV-[0-9]+$'
  total: decimal required min=0   # never negative
  status: enum[draft, sent, paid] required default=draft
  secret: string writeonly
  issued_on: date filter
  relations:
    customer: to-one customer required cascade=restrict
    lines: to-many invoice_line
  note: text readonly
`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(invoiceDSL), "invoice.dsl")
	require.NoError(t, err)
	require.Len(t, doc.Resources, 1)
	r := doc.Resources[0]

	assert.Equal(t, "invoice", r.Name)
	assert.Equal(t, "invoices", r.Plural)
	assert.Equal(t, map[string]any{"audit-fields": true, "pagination": true, "soft-delete": "timestamp"}, r.Options)
	require.Len(t, r.Fields, 6)

	number := r.Fields[0]
	assert.True(t, number.Required)
	assert.True(t, number.Unique)
	assert.Equal(t, 32, *number.MaxLength)
	assert.Equal(t, "^INV-[0-9]+$", number.Pattern)

	total := r.Fields[1]
	assert.Equal(t, 0.0, *total.Min)

	status := r.Fields[2]
	assert.Equal(t, "enum(invoice_status)", status.Type)
	assert.Equal(t, "draft", status.Default)
	assert.Equal(t, []string{"draft", "sent", "paid"}, doc.Enums["invoice_status"])

	assert.False(t, *r.Fields[3].Visibility.Response)
	assert.True(t, *r.Fields[4].Visibility.Query)
	note := r.Fields[5]
	assert.False(t, *note.Visibility.Create)
	assert.False(t, *note.Visibility.Update)
	assert.Nil(t, note.Visibility.Response)

	assert.Equal(t, []spec.RawRelation{
		{Name: "customer", Kind: "to-one", Target: "customer", Required: true, Cascade: "restrict"},
		{Name: "lines", Kind: "to-many", Target: "invoice_line"},
	}, r.Relations)
}

func TestParseRegistersEnums(t *testing.T) {
	doc, err := Parse(strings.NewReader(invoiceDSL), "invoice.dsl")
	require.NoError(t, err)
	reg := typereg.New()
	doc.Register(reg)
	m, ok := reg.EnumMembers("invoice_status")
	require.True(t, ok)
	assert.Len(t, m, 3)
	assert.True(t, reg.HasResource("invoice"))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"outside block":    "total: decimal\n",
		"bad option":       "resource a:\n  x: string colour=red\n",
		"bad number":       "resource a:\n  x: integer min=ten\n",
		"bad relation opt": "resource a:\n  relations:\n    b: to-one b sometimes\n",
		"garbage":          "resource a:\n  ???\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src), "x.dsl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "x.dsl:")
		})
	}
}

func TestSplitOptionTokens(t *testing.T) {
	got := splitOptionTokens(`required default="a b" pattern=^[A-Z, ]+$,unique`)
	assert.Equal(t, []string{"required", `default="a b"`, "pattern=^[A-Z, ]+$", "unique"}, got)
}

func TestParseYAML(t *testing.T) {
	src := `
resources:
  - name: Customer
    fields:
      - name: email
        type: string
        required: true
        max_length: 120
    options:
      pagination: true
enums:
  tier: [free, pro]
---
name: Tag
fields:
  - name: label
    type: string
    visibility:
      query: true
`
	doc, err := ParseYAML([]byte(src), "specs.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Resources, 2)
	assert.Equal(t, 120, *doc.Resources[0].Fields[0].MaxLength)
	assert.Equal(t, true, doc.Resources[0].Options["pagination"])
	assert.Equal(t, []string{"free", "pro"}, doc.Enums["tier"])
	assert.True(t, *doc.Resources[1].Fields[0].Visibility.Query)

	_, err = ParseYAML([]byte("name: X\nfieldz: []\n"), "bad.yaml")
	assert.Error(t, err)
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	write(t, root, "billing/invoice.dsl", invoiceDSL)
	write(t, root, "crm/customer.yaml", "name: customer\nfields:\n  - name: email\n    type: string\n")
	write(t, root, "README.md", "# not a spec")

	doc, err := LoadAll(root, "")
	require.NoError(t, err)
	var names []string
	for _, r := range doc.Resources {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"invoice", "customer"}, names)
	_, ok := doc.Resource("customer")
	assert.True(t, ok)

	only, err := LoadAll(root, "crm/*.yaml")
	require.NoError(t, err)
	assert.Len(t, only.Resources, 1)

	_, err = LoadAll(root, "[")
	assert.Error(t, err)
}

func TestLoadAllRejectsDuplicates(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.dsl", "resource thing:\n  x: string\n")
	write(t, root, "b.yaml", "name: thing\nfields: []\n")
	_, err := LoadAll(root, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate resource "thing"`)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("", "a/b/c.dsl"))
	assert.True(t, Matches("", "x.yml"))
	assert.False(t, Matches("", "x.json"))
	assert.False(t, Matches("*.dsl", "a/x.dsl"))
}
