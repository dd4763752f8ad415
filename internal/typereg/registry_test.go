package typereg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	r := New()
	r.RegisterTarget("go", Mapping{
		KindString:     {Spelling: "string", Tag: TagTextual},
		KindDecimal:    {Spelling: "float64", Tag: TagNumeric},
		KindIdentifier: {Spelling: "int64", Tag: TagNumeric},
		KindEnum:       {Spelling: "string", Tag: TagTextual},
	})
	r.RegisterTarget("openapi", Mapping{
		KindString:     {Spelling: "string", Tag: TagTextual},
		KindIdentifier: {Spelling: "integer:int64", Tag: TagNumeric},
		KindReference:  {Spelling: "ref:{arg}:{id}", Tag: TagNumeric},
	})
	return r
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want SemanticType
	}{
		{"decimal", SemanticType{Kind: KindDecimal}},
		{" Money ", SemanticType{Kind: KindDecimal}},
		{"enum(Status)", SemanticType{Kind: KindEnum, Arg: "Status"}},
		{"reference(customer)", SemanticType{Kind: KindReference, Arg: "customer"}},
		{"ref[Customer]", SemanticType{Kind: KindReference, Arg: "Customer"}},
		{"uuid", SemanticType{Kind: KindIdentifier}},
		{"blob", SemanticType{Kind: "blob"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.in))
		})
	}
	assert.False(t, Kind("blob").Known())
	assert.True(t, KindTimestamp.Known())
}

func TestResolve(t *testing.T) {
	r := testRegistry()
	r.RegisterEnum("status", []string{"draft", "paid"})
	r.RegisterResource("Customer", KindIdentifier)

	ct, err := r.Resolve(SemanticType{Kind: KindDecimal}, "go")
	require.NoError(t, err)
	assert.Equal(t, ConcreteType{Spelling: "float64", Tag: TagNumeric}, ct)

	ct, err = r.Resolve(SemanticType{Kind: KindEnum, Arg: "Status"}, "go")
	require.NoError(t, err)
	assert.Equal(t, TagTextual, ct.Tag)

	// references take the identifier's spelling unless the target spells them
	ct, err = r.Resolve(SemanticType{Kind: KindReference, Arg: "customer"}, "go")
	require.NoError(t, err)
	assert.Equal(t, "int64", ct.Spelling)

	ct, err = r.Resolve(SemanticType{Kind: KindReference, Arg: "customer"}, "openapi")
	require.NoError(t, err)
	assert.Equal(t, "ref:customer:integer:int64", ct.Spelling)
	assert.Equal(t, TagNumeric, ct.Tag)
}

func TestResolveErrors(t *testing.T) {
	r := testRegistry()
	cases := []struct {
		name   string
		typ    SemanticType
		target string
		want   error
	}{
		{"target", SemanticType{Kind: KindString}, "rust", ErrUnknownTarget},
		{"kind", SemanticType{Kind: KindBoolean}, "go", ErrUnknownType},
		{"enum", SemanticType{Kind: KindEnum, Arg: "color"}, "go", ErrUnknownEnum},
		{"reference", SemanticType{Kind: KindReference, Arg: "vendor"}, "go", ErrUnresolvedReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.typ, tc.target)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	r := testRegistry()
	r.RegisterEnum("status", []string{"a"})
	snap := r.Snapshot()

	r.RegisterEnum("color", []string{"red"})
	r.RegisterResource("widget", KindIdentifier)
	r.RegisterTarget("sql", Mapping{})

	_, ok := snap.EnumMembers("color")
	assert.False(t, ok)
	assert.False(t, snap.HasResource("widget"))
	assert.Equal(t, []string{"go", "openapi"}, snap.Targets())

	members, ok := snap.EnumMembers("STATUS")
	require.True(t, ok)
	members[0] = "mutated"
	again, _ := snap.EnumMembers("status")
	assert.Equal(t, []string{"a"}, again)
}

func TestMaps(t *testing.T) {
	r := testRegistry()
	assert.True(t, r.Maps(KindDecimal, "go"))
	assert.False(t, r.Maps(KindDecimal, "openapi"))
	assert.False(t, r.Maps(KindString, "rust"))
}
