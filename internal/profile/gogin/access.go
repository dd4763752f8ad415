package gogin

import (
	"fmt"
	"strings"

	"resforge/internal/artifact"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

// accessBody writes a pgx repository. Fields are emitted under their column
// names; the Go side uses the model's field names.
func accessBody(c *artifact.Context, b *strings.Builder) error {
	fields := c.Each()
	s := c.Resource
	model := c.Names.Declaration
	table := sqlIdent(tableName(c.Names))
	paged := c.OptionBool(spec.OptPagination)
	versioned := c.Has(spec.FieldVersion) && c.OptionBool(spec.OptVersioned)
	audit := c.Has(spec.FieldUpdatedAt) && c.OptionBool(spec.OptAuditFields)

	var id artifact.BoundField
	var cols, scans, writable []string
	for _, f := range fields {
		cols = append(cols, sqlIdent(f.Ident))
		scans = append(scans, "&m."+f.Names.Field)
		if f.Name() == spec.FieldID {
			id = f
			if f.Type.Tag == typereg.TagTextual {
				writable = append(writable, f.Ident)
			}
			continue
		}
		if f.Spec.Implicit && f.Spec.Relation == "" {
			continue
		}
		writable = append(writable, f.Ident)
	}
	if id.Name() == "" {
		return fmt.Errorf("access layer needs the %q field", spec.FieldID)
	}
	byColumn := map[string]artifact.BoundField{}
	for _, f := range fields {
		byColumn[f.Ident] = f
	}

	live := ""
	switch s.SoftDelete() {
	case spec.SoftDeleteTimestamp:
		if c.Has(spec.FieldDeletedAt) {
			live = fmt.Sprintf(" and %s is null", sqlIdent(spec.FieldDeletedAt))
		}
	case spec.SoftDeleteFlag:
		if c.Has(spec.FieldIsDeleted) {
			live = fmt.Sprintf(" and not %s", sqlIdent(spec.FieldIsDeleted))
		}
	}

	imports := []string{"context", "errors", "fmt", "github.com/jackc/pgx/v5", "github.com/jackc/pgx/v5/pgconn", "github.com/jackc/pgx/v5/pgxpool"}
	if paged {
		imports = append(imports, "sort", "strings")
	}
	writeHeader(b, pkgName(c.Names), imports)

	fmt.Fprintf(b, "var (\n\tErrNotFound = errors.New(%q)\n", c.Names.Snake+" not found")
	fmt.Fprintf(b, "\tErrDuplicate = errors.New(%q)\n", c.Names.Snake+" violates a unique constraint")
	fmt.Fprintf(b, "\tErrInvalidReference = errors.New(%q)\n", c.Names.Snake+" references a missing row or is still referenced")
	if versioned {
		fmt.Fprintf(b, "\tErrConflict = errors.New(%q)\n", c.Names.Snake+" was changed concurrently")
	}
	b.WriteString(")\n\n")

	b.WriteString("// OnDelete is the referential action of each relation, as the migration\n// declares it.\nvar OnDelete = map[string]string{\n")
	for _, r := range c.Relations {
		fmt.Fprintf(b, "\t%q: %q,\n", r.Spec.Name, OnDelete(r.Spec.Cascade))
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "const columns = `%s`\n\n", strings.Join(cols, ", "))
	b.WriteString("type Repository struct {\n\tpool *pgxpool.Pool\n}\n\n")
	b.WriteString("func NewRepository(pool *pgxpool.Pool) *Repository {\n\treturn &Repository{pool: pool}\n}\n\n")

	fmt.Fprintf(b, "func scan(row pgx.Row) (%s, error) {\n\tvar m %s\n", model, model)
	fmt.Fprintf(b, "\tif err := row.Scan(%s); err != nil {\n", strings.Join(scans, ", "))
	fmt.Fprintf(b, "\t\tif errors.Is(err, pgx.ErrNoRows) {\n\t\t\treturn %s{}, ErrNotFound\n\t\t}\n\t\treturn %s{}, mapError(err)\n\t}\n\treturn m, nil\n}\n\n", model, model)

	b.WriteString("func mapError(err error) error {\n\tvar pgErr *pgconn.PgError\n\tif errors.As(err, &pgErr) {\n\t\tswitch pgErr.Code {\n")
	b.WriteString("\t\tcase \"23503\":\n\t\t\treturn fmt.Errorf(\"%w: %s\", ErrInvalidReference, pgErr.ConstraintName)\n")
	b.WriteString("\t\tcase \"23505\":\n\t\t\treturn fmt.Errorf(\"%w: %s\", ErrDuplicate, pgErr.ConstraintName)\n")
	b.WriteString("\t\t}\n\t}\n\treturn err\n}\n\n")

	// Create
	var ph, args []string
	for i, col := range writable {
		ph = append(ph, fmt.Sprintf("$%d", i+1))
		args = append(args, "m."+byColumn[col].Names.Field)
	}
	fmt.Fprintf(b, "func (r *Repository) Create(ctx context.Context, m %s) (%s, error) {\n", model, model)
	if len(writable) == 0 {
		fmt.Fprintf(b, "\treturn scan(r.pool.QueryRow(ctx, `insert into %s default values returning `+columns))\n}\n\n", table)
	} else {
		fmt.Fprintf(b, "\treturn scan(r.pool.QueryRow(ctx,\n\t\t`insert into %s (%s) values (%s) returning `+columns,\n\t\t%s))\n}\n\n",
			table, quoteAll(writable), strings.Join(ph, ", "), strings.Join(args, ", "))
	}

	// Get
	fmt.Fprintf(b, "func (r *Repository) Get(ctx context.Context, id %s) (%s, error) {\n", id.Type.Spelling, model)
	fmt.Fprintf(b, "\treturn scan(r.pool.QueryRow(ctx, `select `+columns+` from %s where %s = $1%s`, id))\n}\n\n", table, sqlIdent(id.Ident), live)

	// List
	if paged {
		q := "List" + c.Names.PluralDeclaration + "Query"
		fmt.Fprintf(b, "func (r *Repository) List(ctx context.Context, q %s) ([]%s, error) {\n", q, model)
		b.WriteString("\tfilters := q.Filters()\n\tkeys := make([]string, 0, len(filters))\n\tfor k := range filters {\n\t\tkeys = append(keys, k)\n\t}\n\tsort.Strings(keys)\n\n")
		fmt.Fprintf(b, "\twhere := []string{\"true%s\"}\n\tvar args []any\n", strings.ReplaceAll(live, `"`, `\"`))
		b.WriteString("\tfor _, k := range keys {\n\t\targs = append(args, filters[k])\n\t\twhere = append(where, fmt.Sprintf(`\"%s\" = $%d`, k, len(args)))\n\t}\n")
		b.WriteString("\targs = append(args, q.Limit(), q.Offset())\n")
		fmt.Fprintf(b, "\tsql := fmt.Sprintf(`select `+columns+` from %s where %%s order by %s limit $%%d offset $%%d`,\n\t\tstrings.Join(where, \" and \"), len(args)-1, len(args))\n", table, sqlIdent(id.Ident))
		b.WriteString("\trows, err := r.pool.Query(ctx, sql, args...)\n")
	} else {
		fmt.Fprintf(b, "func (r *Repository) List(ctx context.Context) ([]%s, error) {\n", model)
		fmt.Fprintf(b, "\trows, err := r.pool.Query(ctx, `select `+columns+` from %s where true%s order by %s`)\n", table, live, sqlIdent(id.Ident))
	}
	b.WriteString("\tif err != nil {\n\t\treturn nil, mapError(err)\n\t}\n\tdefer rows.Close()\n")
	fmt.Fprintf(b, "\tvar out []%s\n\tfor rows.Next() {\n\t\tm, err := scan(rows)\n\t\tif err != nil {\n\t\t\treturn nil, err\n\t\t}\n\t\tout = append(out, m)\n\t}\n\treturn out, rows.Err()\n}\n\n", model)

	// Update
	var sets, uargs []string
	n := 0
	for _, col := range writable {
		if col == id.Ident {
			continue
		}
		n++
		sets = append(sets, fmt.Sprintf("%s = $%d", sqlIdent(col), n))
		uargs = append(uargs, "m."+byColumn[col].Names.Field)
	}
	if audit {
		sets = append(sets, sqlIdent(spec.FieldUpdatedAt)+" = now()")
	}
	if versioned {
		sets = append(sets, fmt.Sprintf("%s = %s + 1", sqlIdent(spec.FieldVersion), sqlIdent(spec.FieldVersion)))
	}
	n++
	where := fmt.Sprintf("%s = $%d", sqlIdent(id.Ident), n)
	uargs = append(uargs, "m."+id.Names.Field)
	if versioned {
		n++
		where += fmt.Sprintf(" and %s = $%d", sqlIdent(spec.FieldVersion), n)
		uargs = append(uargs, "m."+byColumn[spec.FieldVersion].Names.Field)
	}
	fmt.Fprintf(b, "func (r *Repository) Update(ctx context.Context, m %s) (%s, error) {\n", model, model)
	if len(sets) == 0 {
		fmt.Fprintf(b, "\treturn r.Get(ctx, m.%s)\n}\n\n", id.Names.Field)
	} else {
		fmt.Fprintf(b, "\tout, err := scan(r.pool.QueryRow(ctx,\n\t\t`update %s set %s where %s%s returning `+columns,\n\t\t%s))\n",
			table, strings.Join(sets, ", "), where, live, strings.Join(uargs, ", "))
		if versioned {
			fmt.Fprintf(b, "\tif errors.Is(err, ErrNotFound) {\n\t\tif _, gerr := r.Get(ctx, m.%s); gerr == nil {\n\t\t\treturn %s{}, ErrConflict\n\t\t}\n\t}\n", id.Names.Field, model)
		}
		b.WriteString("\treturn out, err\n}\n\n")
	}

	// Delete
	fmt.Fprintf(b, "func (r *Repository) Delete(ctx context.Context, id %s) error {\n", id.Type.Spelling)
	switch {
	case live != "" && s.SoftDelete() == spec.SoftDeleteTimestamp:
		fmt.Fprintf(b, "\ttag, err := r.pool.Exec(ctx, `update %s set %s = now() where %s = $1%s`, id)\n", table, sqlIdent(spec.FieldDeletedAt), sqlIdent(id.Ident), live)
	case live != "":
		fmt.Fprintf(b, "\ttag, err := r.pool.Exec(ctx, `update %s set %s = true where %s = $1%s`, id)\n", table, sqlIdent(spec.FieldIsDeleted), sqlIdent(id.Ident), live)
	default:
		fmt.Fprintf(b, "\ttag, err := r.pool.Exec(ctx, `delete from %s where %s = $1`, id)\n", table, sqlIdent(id.Ident))
	}
	b.WriteString("\tif err != nil {\n\t\treturn mapError(err)\n\t}\n\tif tag.RowsAffected() == 0 {\n\t\treturn ErrNotFound\n\t}\n\treturn nil\n}\n")
	return nil
}

func quoteAll(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = sqlIdent(c)
	}
	return strings.Join(out, ", ")
}
