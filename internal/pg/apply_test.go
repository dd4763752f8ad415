package pg

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"resforge/internal/artifact"
	"resforge/internal/engine"
	"resforge/internal/profile/gogin"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

func TestStatements(t *testing.T) {
	got := statements(`-- header

create table if not exists "a" (
  "id" uuid primary key,
  "note" text not null default 'x;y'
);
create index if not exists "a_idx" on "a"("note");
  -- trailing comment
alter table "a" add constraint "c" check (true)`)
	require.Len(t, got, 3)
	assert.Contains(t, got[0], `default 'x;y'`)
	assert.Equal(t, `create index if not exists "a_idx" on "a"("note");`, got[1])
	assert.Equal(t, `alter table "a" add constraint "c" check (true)`, got[2])

	assert.Empty(t, statements("-- only\n\n"))
}

func TestMigrationSections(t *testing.T) {
	m := Migration{Name: "x.sql", SQL: "create table t ();\n" + gogin.ForeignKeyMarker + "\nalter table t add constraint f;\n"}
	assert.Equal(t, "create table t ();\n", m.Tables())
	assert.Equal(t, "\nalter table t add constraint f;\n", m.ForeignKeys())
	assert.Len(t, m.Checksum(), 64)

	plain := Migration{SQL: "create table u ();"}
	assert.Equal(t, plain.SQL, plain.Tables())
	assert.Empty(t, plain.ForeignKeys())
	assert.NotEqual(t, m.Checksum(), plain.Checksum())
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"b/002_b.sql": "select 2;",
		"001_a.sql":   "select 1;",
		"notes.txt":   "skip",
	} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	migs, err := LoadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "001_a.sql", migs[0].Name)
	assert.Equal(t, "b/002_b.sql", migs[1].Name)
}

// generated renders migrations for a customer and an invoice that points at
// it, with the invoice first in the list.
func generated(t *testing.T) []Migration {
	t.Helper()
	zero := 0.0
	reg := typereg.New()
	reg.RegisterEnum("invoice_status", []string{"draft", "paid"})
	e := engine.New(reg, nil, 2)
	results, err := e.GenerateAll(context.Background(), []engine.Request{
		{Profile: gogin.Name, DryRun: true, Raw: spec.Raw{
			Name: "Invoice",
			Fields: []spec.RawField{
				{Name: "number", Type: "string", Required: true, Unique: true},
				{Name: "total", Type: "decimal", Required: true, Min: &zero},
				{Name: "status", Type: "enum(invoice_status)", Default: "draft"},
			},
			Relations: []spec.RawRelation{{Name: "customer", Kind: "to-one", Target: "Customer", Required: true}},
			Options:   map[string]any{"audit-fields": true, "soft-delete": "timestamp"},
		}},
		{Profile: gogin.Name, DryRun: true, Raw: spec.Raw{
			Name:   "Customer",
			Fields: []spec.RawField{{Name: "email", Type: "string", Required: true, Unique: true}},
		}},
	})
	require.NoError(t, err)

	var migs []Migration
	for _, res := range results {
		for _, a := range res.Artifacts {
			if a.Kind == artifact.KindMigration {
				migs = append(migs, Migration{Name: a.Path, SQL: a.Content})
			}
		}
	}
	require.Len(t, migs, 2)
	return migs
}

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("resforge"),
		postgres.WithUsername("resforge"),
		postgres.WithPassword("resforge"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyGeneratedMigrations(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	migs := generated(t)
	a := NewApplier(db, nil)

	changed, err := a.Apply(ctx, migs)
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	var fks int
	require.NoError(t, db.QueryRowContext(ctx,
		`select count(*) from information_schema.table_constraints where constraint_type = 'FOREIGN KEY'`).Scan(&fks))
	assert.Equal(t, 1, fks)

	changed, err = a.Apply(ctx, migs)
	require.NoError(t, err, "re-applying must be idempotent")
	assert.Empty(t, changed)

	edited := append([]Migration(nil), migs...)
	edited[0].SQL += "\n-- touched\n"
	changed, err = a.Apply(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, []string{edited[0].Name}, changed)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `select count(*) from "resforge_migrations"`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestApplyReportsBadDDL(t *testing.T) {
	db := startPostgres(t)
	_, err := NewApplier(db, nil).Apply(context.Background(), []Migration{{Name: "bad.sql", SQL: "create tabel nope ();"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.sql: DDL apply failed")
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}
