package gogin

import (
	"strings"

	"resforge/internal/naming"
	"resforge/internal/spec"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {}, "check": {},
	"column": {}, "references": {}, "end": {}, "case": {}, "when": {}, "all": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// tableName is the plural snake name; reserved words get an "e_" prefix so
// the table never needs quoting by hand-written SQL.
func tableName(n naming.Set) string {
	t := strings.ToLower(n.Plural)
	if isReserved(t) {
		t = "e_" + t
	}
	return t
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// OnDelete is the referential action of a cascade policy. The migration and
// the repository both read it so they cannot disagree.
func OnDelete(c spec.Cascade) string {
	switch c {
	case spec.CascadeCascade:
		return "CASCADE"
	case spec.CascadeSetNull:
		return "SET NULL"
	default:
		return "RESTRICT"
	}
}

// sqlLiteral quotes a default for a column of the given tag.
func sqlLiteral(v string, numericOrBool bool) string {
	if numericOrBool {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
