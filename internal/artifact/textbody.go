package artifact

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"resforge/internal/naming"
)

// Funcs are available to every text body.
var Funcs = template.FuncMap{
	"lower":  strings.ToLower,
	"upper":  strings.ToUpper,
	"join":   strings.Join,
	"quote":  strconv.Quote,
	"snake":  func(s string) string { return naming.Apply(naming.Snake, s) },
	"pascal": func(s string) string { return naming.Apply(naming.Pascal, s) },
	"camel":  func(s string) string { return naming.Apply(naming.Camel, s) },
	"kebab":  func(s string) string { return naming.Apply(naming.Kebab, s) },
	"human":  func(s string) string { return naming.Apply(naming.Human, s) },
	"plural": naming.Pluralize,
	"last":   func(i, n int) bool { return i == n-1 },
}

// TextBody parses a text/template once and returns a Body that executes it
// with the Context as data. Inside the template `.Each` and `$.Use "name"`
// record emitted fields.
func TextBody(name, src string) (Body, error) {
	return TextBodyFuncs(name, src, nil)
}

// TextBodyFuncs is TextBody with extra template functions.
func TextBodyFuncs(name, src string, funcs template.FuncMap) (Body, error) {
	tmpl, err := template.New(name).Funcs(Funcs).Funcs(funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return func(c *Context) error {
		return tmpl.Execute(c, c)
	}, nil
}

func MustTextBody(name, src string, funcs template.FuncMap) Body {
	b, err := TextBodyFuncs(name, src, funcs)
	if err != nil {
		panic(err)
	}
	return b
}

// Formatted runs body and then passes its whole output through format,
// e.g. go/format.Source for Go targets.
func Formatted(body Body, format func([]byte) ([]byte, error)) Body {
	return func(c *Context) error {
		if err := body(c); err != nil {
			return err
		}
		out, err := format(c.buf.Bytes())
		if err != nil {
			return fmt.Errorf("format %s: %w", c.Kind, err)
		}
		c.buf.Reset()
		c.buf.Write(out)
		return nil
	}
}
