package gogin

import (
	"fmt"
	"strings"

	"resforge/internal/artifact"
	"resforge/internal/naming"
)

func modelBody(c *artifact.Context, b *strings.Builder) error {
	fields := c.Each()
	writeHeader(b, pkgName(c.Names), typeImports(fields))

	for _, f := range fields {
		if len(f.Enum) == 0 {
			continue
		}
		fmt.Fprintf(b, "// %s values of %s.\nconst (\n", f.Names.Pascal, c.Names.Declaration)
		for _, m := range f.Enum {
			fmt.Fprintf(b, "\t%s = %q\n", enumConst(c.Names, f, m), m)
		}
		b.WriteString(")\n\n")
	}

	fmt.Fprintf(b, "// %s is one row of %s.\n", c.Names.Declaration, tableName(c.Names))
	fmt.Fprintf(b, "type %s struct {\n", c.Names.Declaration)
	for _, f := range fields {
		fmt.Fprintf(b, "\t%s %s `db:%q json:%q`\n", f.Ident, modelType(f), f.Names.Column, jsonTag(f))
	}
	b.WriteString("}\n\n")
	fmt.Fprintf(b, "func (%s) TableName() string { return %q }\n", c.Names.Declaration, tableName(c.Names))

	if len(c.Relations) > 0 {
		b.WriteString("\n// Relations\nconst (\n")
		for _, r := range c.Relations {
			fmt.Fprintf(b, "\t%sRelation%s = %q // %s %s\n", c.Names.Declaration, r.Names.Pascal, r.Spec.Name, r.Spec.Kind, r.Spec.Target)
		}
		b.WriteString(")\n")
	}
	return nil
}

func enumConst(n naming.Set, f artifact.BoundField, member string) string {
	return n.Declaration + f.Names.Pascal + naming.Apply(naming.Pascal, member)
}
