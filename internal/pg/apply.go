package pg

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"resforge/internal/profile/gogin"
)

// Migration is one generated migration file.
type Migration struct {
	Name string
	SQL  string
}

// Tables is the part before the foreign key marker.
func (m Migration) Tables() string {
	before, _, _ := strings.Cut(m.SQL, gogin.ForeignKeyMarker)
	return before
}

// ForeignKeys is the part after the marker, empty without one.
func (m Migration) ForeignKeys() string {
	_, after, _ := strings.Cut(m.SQL, gogin.ForeignKeyMarker)
	return after
}

func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.SQL))
	return hex.EncodeToString(sum[:])
}

// LoadMigrations reads the *.sql files under dir, sorted by name.
func LoadMigrations(dir string) ([]Migration, error) {
	names, err := doublestar.Glob(os.DirFS(dir), "**/*.sql", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]Migration, 0, len(names))
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(n)))
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: n, SQL: string(data)})
	}
	return out, nil
}

const historyDDL = `create table if not exists "resforge_migrations" (
  "name" text primary key,
  "checksum" text not null,
  "applied_at" timestamp with time zone not null default now()
)`

// Applier runs migrations in two phases: every table section first, then
// every foreign key section, so resources of one batch may reference each
// other in any order. Statements must be idempotent.
type Applier struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func NewApplier(db *sql.DB, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{DB: db, Logger: logger}
}

// Apply returns the names of migrations that were new or changed.
func (a *Applier) Apply(ctx context.Context, migs []Migration) ([]string, error) {
	migs = append([]Migration(nil), migs...)
	sort.Slice(migs, func(i, j int) bool { return migs[i].Name < migs[j].Name })

	if _, err := a.DB.ExecContext(ctx, historyDDL); err != nil {
		return nil, fmt.Errorf("migration history: %w", err)
	}
	applied, err := a.history(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range migs {
		if err := a.exec(ctx, m.Name, m.Tables()); err != nil {
			return nil, err
		}
	}
	for _, m := range migs {
		if err := a.exec(ctx, m.Name, m.ForeignKeys()); err != nil {
			return nil, err
		}
	}

	var changed []string
	for _, m := range migs {
		sum := m.Checksum()
		prev, ok := applied[m.Name]
		if ok && prev == sum {
			continue
		}
		if ok {
			a.Logger.Warn("applied migration was edited", zap.String("migration", m.Name))
		}
		changed = append(changed, m.Name)
		if _, err := a.DB.ExecContext(ctx,
			`insert into "resforge_migrations" ("name", "checksum") values ($1, $2)
			 on conflict ("name") do update set "checksum" = excluded."checksum", "applied_at" = now()`,
			m.Name, sum); err != nil {
			return nil, fmt.Errorf("record %s: %w", m.Name, err)
		}
	}
	return changed, nil
}

func (a *Applier) history(ctx context.Context) (map[string]string, error) {
	rows, err := a.DB.QueryContext(ctx, `select "name", "checksum" from "resforge_migrations"`)
	if err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, rows.Err()
}

func (a *Applier) exec(ctx context.Context, name, sqlText string) error {
	for _, stmt := range statements(sqlText) {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			// duplicate_object: the constraint is there from an earlier run
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				a.Logger.Debug("DDL skipped, already exists",
					zap.String("migration", name),
					zap.String("constraint", pgErr.ConstraintName))
				continue
			}
			return fmt.Errorf("%s: DDL apply failed: %w", name, err)
		}
	}
	return nil
}

// statements splits on ';' at line ends. Generated migrations never put a
// statement terminator inside a literal at the end of a line.
func statements(sqlText string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(sqlText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
