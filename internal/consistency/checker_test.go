package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resforge/internal/artifact"
	"resforge/internal/diag"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

var (
	numeric = typereg.ConcreteType{Spelling: "float64", Tag: typereg.TagNumeric}
	textual = typereg.ConcreteType{Spelling: "string", Tag: typereg.TagTextual}
)

func invoiceSpec(t *testing.T) *spec.ResourceSpec {
	t.Helper()
	reg := typereg.New()
	s, ps := spec.Validate(spec.Raw{
		Name: "Invoice",
		Fields: []spec.RawField{
			{Name: "number", Type: "string", Required: true},
			{Name: "total", Type: "decimal", Required: true},
			{Name: "note", Type: "text"},
		},
	}, reg, nil)
	require.False(t, ps.HasErrors(), "%v", ps)
	return s
}

func ref(field, emitted string, t typereg.ConcreteType) artifact.FieldRef {
	return artifact.FieldRef{Field: field, Emitted: emitted, Type: t}
}

func consistentSet() []artifact.Rendered {
	return []artifact.Rendered{
		{Kind: artifact.KindModel, ReferencedFields: []artifact.FieldRef{
			ref("number", "Number", textual), ref("total", "Total", numeric), ref("note", "Note", textual)}},
		{Kind: artifact.KindCreate, ReferencedFields: []artifact.FieldRef{
			ref("number", "number", textual), ref("total", "total", numeric)}},
		{Kind: artifact.KindUpdate, ReferencedFields: []artifact.FieldRef{
			ref("number", "number", textual), ref("total", "total", numeric)}},
		{Kind: artifact.KindResponse, ReferencedFields: []artifact.FieldRef{
			ref("number", "number", textual), ref("total", "total", numeric), ref("note", "note", textual)}},
	}
}

func TestCheckConsistent(t *testing.T) {
	assert.Empty(t, Check(consistentSet(), invoiceSpec(t)))
}

func TestCheckTypeDrift(t *testing.T) {
	arts := consistentSet()
	arts[1].ReferencedFields[1] = ref("total", "total", textual)

	ps := Check(arts, invoiceSpec(t))
	require.Len(t, ps, 1)
	p := ps[0]
	assert.Equal(t, diag.CodeTypeDrift, p.Code)
	assert.Equal(t, "total", p.Field)
	assert.Equal(t, "model", p.Artifact)
	assert.Equal(t, "create", p.Related)
	assert.Contains(t, p.Message, "numeric: model, update, response")
}

func TestCheckMissingRequired(t *testing.T) {
	arts := consistentSet()
	// an update contract that forgot total
	arts[2].ReferencedFields = arts[2].ReferencedFields[:1]

	ps := Check(arts, invoiceSpec(t))
	require.Len(t, ps, 1)
	assert.Equal(t, diag.CodeMissingRequiredField, ps[0].Code)
	assert.Equal(t, "update", ps[0].Artifact)
	assert.Equal(t, "total", ps[0].Field)
}

func TestCheckNameDrift(t *testing.T) {
	arts := consistentSet()
	arts[3].ReferencedFields[2] = ref("note", "remark", textual)

	ps := Check(arts, invoiceSpec(t))
	require.Len(t, ps.ByCode(diag.CodeNameDrift), 1)
	assert.Equal(t, "response", ps[0].Artifact)
}

func TestCheckIgnoresFailedArtifacts(t *testing.T) {
	arts := consistentSet()
	arts[1] = artifact.Rendered{Kind: artifact.KindCreate, Failed: true}
	assert.Empty(t, Check(arts, invoiceSpec(t)))
}
