package gogin

import (
	"encoding/json"
	"net/http"
	"strings"
	"text/template"

	"resforge/internal/artifact"
	"resforge/internal/typereg"
)

type bindingCase struct {
	Name string
	Body string
	Want int
}

var testFuncs = template.FuncMap{
	"pkg":   pkgName,
	"cases": bindingCases,
}

var testBody = artifact.MustTextBody("test", testSrc, testFuncs)

// bindingCases derives the table of the generated binding test: one valid
// payload and one payload per required field with that field left out.
// Fields with a pattern cannot be sampled, so their presence only shows in
// the missing cases.
func bindingCases(fields []artifact.BoundField) []bindingCase {
	valid := map[string]any{}
	patterned := false
	for _, f := range fields {
		if f.Spec.Constraints.Pattern != "" {
			if bindingRequired(f, string(artifact.KindCreate)) {
				patterned = true
			}
			continue
		}
		valid[f.Names.Camel] = sample(f)
	}
	var out []bindingCase
	if !patterned {
		out = append(out, bindingCase{Name: "valid", Body: encode(valid), Want: http.StatusNoContent})
	}
	for _, f := range fields {
		if !bindingRequired(f, string(artifact.KindCreate)) {
			continue
		}
		body := map[string]any{}
		for k, v := range valid {
			if k != f.Names.Camel {
				body[k] = v
			}
		}
		out = append(out, bindingCase{Name: "missing " + f.Names.Snake, Body: encode(body), Want: http.StatusBadRequest})
	}
	out = append(out, bindingCase{Name: "malformed", Body: "{", Want: http.StatusBadRequest})
	return out
}

// encode marshals with sorted keys, which keeps the output stable.
func encode(v map[string]any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func sample(f artifact.BoundField) any {
	cs := f.Spec.Constraints
	switch f.Spec.Type.Kind {
	case typereg.KindString, typereg.KindText:
		n := 3
		if cs.MinLength != nil && *cs.MinLength > n {
			n = *cs.MinLength
		}
		if cs.MaxLength != nil && *cs.MaxLength < n {
			n = *cs.MaxLength
		}
		return strings.Repeat("a", n)
	case typereg.KindInteger, typereg.KindDecimal:
		v := 1.0
		if cs.Min != nil {
			v = *cs.Min
		} else if cs.Max != nil && *cs.Max < v {
			v = *cs.Max
		}
		return v
	case typereg.KindBoolean:
		return true
	case typereg.KindDate, typereg.KindTimestamp:
		return "2024-01-02T15:04:05Z"
	case typereg.KindEnum:
		if len(f.Enum) > 0 {
			return f.Enum[0]
		}
	}
	if f.Type.Tag == typereg.TagNumeric {
		return 1
	}
	return "a1"
}

const testSrc = `// Code generated by resforge. DO NOT EDIT.

{{- $fields := .Each }}
{{- $n := .Names }}

package {{ pkg $n }}

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCreate{{ $n.Declaration }}RequestBinding(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/{{ $n.Path }}", func(c *gin.Context) {
		var req Create{{ $n.Declaration }}Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		if err := req.Validate(); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		_ = req.Model()
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
{{- range cases $fields }}
		{name: {{ quote .Name }}, body: {{ quote .Body }}, want: {{ .Want }}},
{{- end }}
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/{{ $n.Path }}", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
`
