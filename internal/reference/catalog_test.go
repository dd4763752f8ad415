package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resforge/internal/typereg"
)

func TestLoadCatalogs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "currency.yaml"), []byte(`
items:
  - code: USD
    name: US Dollar
    order: 2
  - code: EUR
    order: 1
  - code: DEM
    order: 3
    deprecated: true
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiers.yml"), []byte(`
name: tier
items:
  - code: free
  - code: pro
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	cats, err := LoadCatalogs(dir)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, []string{"EUR", "USD", "DEM"}, cats["currency"].Members())
	assert.Equal(t, "US Dollar", cats["currency"].Items[0].Label)
	assert.Equal(t, []string{"free", "pro"}, cats["tier"].Members())

	reg := typereg.New()
	Register(reg, cats)
	m, ok := reg.EnumMembers("Currency")
	require.True(t, ok)
	assert.Len(t, m, 3)
}

func TestLoadCatalogsErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("name: empty\nitems: []\n"), 0o644))
	_, err := LoadCatalogs(dir)
	assert.ErrorContains(t, err, "has no items")

	dup := t.TempDir()
	for _, f := range []string{"a.yaml", "b.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dup, f), []byte("name: same\nitems: [{code: x}]\n"), 0o644))
	}
	_, err = LoadCatalogs(dup)
	assert.ErrorContains(t, err, "declared twice")

	_, err = LoadCatalogs(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
