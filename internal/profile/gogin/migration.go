package gogin

import (
	"fmt"
	"strconv"
	"strings"

	"resforge/internal/artifact"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

// ForeignKeyMarker separates the table section of a migration from its
// foreign keys. Tables of a batch are all created before any foreign key is
// added.
const ForeignKeyMarker = "-- resforge:foreign-keys"

func migrationBody(c *artifact.Context) error {
	fields := c.Each()
	table := tableName(c.Names)
	live := ""
	switch c.Resource.SoftDelete() {
	case spec.SoftDeleteTimestamp:
		live = fmt.Sprintf(" where %s is null", sqlIdent(spec.FieldDeletedAt))
	case spec.SoftDeleteFlag:
		live = fmt.Sprintf(" where not %s", sqlIdent(spec.FieldIsDeleted))
	}

	var cols []string
	for _, f := range fields {
		cols = append(cols, columnDef(f))
	}
	c.Line("-- Code generated by resforge. DO NOT EDIT.")
	c.Line("")
	c.Line("create table if not exists %s (\n  %s\n);", sqlIdent(table), strings.Join(cols, ",\n  "))

	for _, f := range fields {
		if !f.Spec.Unique || f.Name() == spec.FieldID {
			continue
		}
		c.Line("create unique index if not exists %s on %s(%s)%s;",
			sqlIdent(table+"_"+f.Ident+"_uq"), sqlIdent(table), sqlIdent(f.Ident), live)
	}

	byRelation := map[string]artifact.BoundField{}
	for _, f := range fields {
		if f.Spec.Relation != "" {
			byRelation[f.Spec.Relation] = f
			c.Line("create index if not exists %s on %s(%s);",
				sqlIdent(table+"_"+f.Ident+"_idx"), sqlIdent(table), sqlIdent(f.Ident))
		}
	}

	var fks []string
	for _, r := range c.Relations {
		target := tableName(r.Target)
		switch r.Spec.Kind {
		case spec.ToOne:
			fk, ok := byRelation[r.Spec.Name]
			if !ok {
				continue
			}
			if r.Spec.External {
				fks = append(fks, fmt.Sprintf("-- %s references %s, which is managed elsewhere", fk.Ident, target))
				continue
			}
			fks = append(fks, fmt.Sprintf("alter table %s add constraint %s foreign key (%s) references %s(%s) on delete %s;",
				sqlIdent(table), sqlIdent(table+"_"+fk.Ident+"_fk"), sqlIdent(fk.Ident),
				sqlIdent(target), sqlIdent(spec.FieldID), OnDelete(r.Spec.Cascade)))
		case spec.ManyToMany:
			fks = append(fks, joinTable(c, table, idType(fields), r))
		}
	}
	if len(fks) > 0 {
		c.Line("")
		c.Line("%s", ForeignKeyMarker)
		for _, s := range fks {
			c.Line("%s", s)
		}
	}
	return nil
}

func columnDef(f artifact.BoundField) string {
	col := sqlIdent(f.Ident)
	if f.Name() == spec.FieldID {
		if f.Type.Tag == typereg.TagNumeric {
			return col + " " + f.Type.Spelling + " generated always as identity primary key"
		}
		return col + " " + f.Type.Spelling + " primary key"
	}
	parts := []string{col, f.Type.Spelling}
	if f.Spec.Required {
		parts = append(parts, "not null")
	}
	if d := columnDefault(f); d != "" {
		parts = append(parts, "default "+d)
	}
	if ck := columnCheck(f); ck != "" {
		parts = append(parts, "check ("+ck+")")
	}
	return strings.Join(parts, " ")
}

func columnDefault(f artifact.BoundField) string {
	d := strings.TrimSpace(f.Spec.Default)
	if f.Spec.Implicit {
		switch f.Name() {
		case spec.FieldCreatedAt, spec.FieldUpdatedAt:
			return "now()"
		}
	}
	if d == "" {
		return ""
	}
	if f.Type.Tag == typereg.TagTemporal && (strings.EqualFold(d, "now") || strings.EqualFold(d, "now()")) {
		return "now()"
	}
	return sqlLiteral(d, f.Type.Tag == typereg.TagNumeric || f.Type.Tag == typereg.TagBoolean)
}

func columnCheck(f artifact.BoundField) string {
	col := sqlIdent(f.Ident)
	cs := f.Spec.Constraints
	var out []string
	if cs.MinLength != nil {
		out = append(out, fmt.Sprintf("char_length(%s) >= %d", col, *cs.MinLength))
	}
	if cs.MaxLength != nil {
		out = append(out, fmt.Sprintf("char_length(%s) <= %d", col, *cs.MaxLength))
	}
	if cs.Min != nil {
		out = append(out, fmt.Sprintf("%s >= %s", col, strconv.FormatFloat(*cs.Min, 'f', -1, 64)))
	}
	if cs.Max != nil {
		out = append(out, fmt.Sprintf("%s <= %s", col, strconv.FormatFloat(*cs.Max, 'f', -1, 64)))
	}
	if cs.Pattern != "" {
		out = append(out, fmt.Sprintf("%s ~ %s", col, sqlLiteral(cs.Pattern, false)))
	}
	if len(f.Enum) > 0 {
		var lits []string
		for _, m := range f.Enum {
			lits = append(lits, sqlLiteral(m, false))
		}
		out = append(out, fmt.Sprintf("%s in (%s)", col, strings.Join(lits, ", ")))
	}
	return strings.Join(out, " and ")
}

// joinTable is the link table of a many-to-many relation. Link columns are
// never null; validation rejects set-null here.
func joinTable(c *artifact.Context, table, ownType string, r artifact.BoundRelation) string {
	own := c.Names.Snake + "_id"
	other := r.Target.Snake + "_id"
	if own == other {
		other = r.Names.Snake + "_id"
	}
	link := table + "_" + r.Names.Snake
	otherType := r.TargetID.Spelling
	if otherType == "" {
		otherType = PostgresTypes[typereg.KindIdentifier].Spelling
	}
	var b strings.Builder
	fmt.Fprintf(&b, "create table if not exists %s (\n  %s %s not null references %s(%s) on delete cascade,\n  %s %s not null",
		sqlIdent(link), sqlIdent(own), ownType, sqlIdent(table), sqlIdent(spec.FieldID), sqlIdent(other), otherType)
	if !r.Spec.External {
		fmt.Fprintf(&b, " references %s(%s) on delete %s", sqlIdent(tableName(r.Target)), sqlIdent(spec.FieldID), OnDelete(r.Spec.Cascade))
	}
	fmt.Fprintf(&b, ",\n  primary key (%s, %s)\n);", sqlIdent(own), sqlIdent(other))
	return b.String()
}

func idType(fields []artifact.BoundField) string {
	for _, f := range fields {
		if f.Name() == spec.FieldID {
			return f.Type.Spelling
		}
	}
	return PostgresTypes[typereg.KindIdentifier].Spelling
}
