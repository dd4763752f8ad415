package dsl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"resforge/internal/spec"
)

var (
	resourceRe  = regexp.MustCompile(`^resource\s+([A-Za-z][\w-]*)\s*:$`)
	pluralRe    = regexp.MustCompile(`^plural\s*:\s*([A-Za-z][\w-]*)$`)
	optionsRe   = regexp.MustCompile(`^options\s*:(.*)$`)
	relationsRe = regexp.MustCompile(`^relations\s*:$`)
	relationRe  = regexp.MustCompile(`^([\w-]+)\s*:\s*(to-one|to-many|many-to-many)\s+([\w-]+)(.*)$`)
	fieldRe     = regexp.MustCompile(`^([\w-]+)\s*:\s*([^\s#]+)(.*)$`)
	enumRe      = regexp.MustCompile(`^enum\[(.*)\]$`)
)

// splitOptionTokens splits "k=v k2='v 2' pattern=^[A-Z0-9 _-]+$" into
// tokens. Spaces and commas inside quotes or brackets do not split.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t' || r == ',') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

type option struct {
	key, value string
	flag       bool
}

// parseOptions tokenizes the tail of a line. A '#' outside quotes starts a
// comment.
func parseOptions(tail string) []option {
	tail = stripComment(tail)
	tail = strings.TrimSpace(tail)
	if strings.HasPrefix(strings.ToLower(tail), "options:") {
		tail = strings.TrimSpace(tail[len("options:"):])
	}
	var out []option
	for _, tok := range splitOptionTokens(tail) {
		k, v, ok := strings.Cut(tok, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if !ok {
			out = append(out, option{key: k, value: "true", flag: true})
			continue
		}
		out = append(out, option{key: k, value: unquote(strings.TrimSpace(v))})
	}
	return out
}

func stripComment(s string) string {
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			inSingle = !inSingle && !inDouble
		case '"':
			inDouble = !inDouble && !inSingle
		case '#':
			if !inSingle && !inDouble {
				return s[:i]
			}
		}
	}
	return s
}

func unquote(v string) string {
	if len(v) >= 2 && ((v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'')) {
		return v[1 : len(v)-1]
	}
	return v
}

// LoadFile parses one DSL file.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads the resource DSL:
//
//	resource invoice:
//	  plural: invoices
//	  options: audit-fields pagination soft-delete=timestamp
//	  total: decimal required min=0
//	  status: enum[draft, sent, paid] required default=draft
//	  relations:
//	    customer: to-one customer required cascade=set-null
func Parse(r io.Reader, source string) (*Document, error) {
	doc := &Document{Source: source}
	var current *spec.Raw
	inRelations := false
	lineNo := 0

	flush := func() {
		if current != nil {
			doc.Resources = append(doc.Resources, *current)
			current = nil
		}
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%s:%d: %s", source, lineNo, fmt.Sprintf(format, args...))
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := resourceRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &spec.Raw{Name: m[1]}
			inRelations = false
			continue
		}
		if current == nil {
			return nil, fail("%q outside a resource block", line)
		}

		if relationsRe.MatchString(line) {
			inRelations = true
			continue
		}
		if inRelations {
			if m := relationRe.FindStringSubmatch(line); m != nil {
				rel, err := parseRelation(m)
				if err != nil {
					return nil, fail("%v", err)
				}
				current.Relations = append(current.Relations, rel)
				continue
			}
			// anything else closes the block
			inRelations = false
		}

		if m := pluralRe.FindStringSubmatch(line); m != nil {
			current.Plural = m[1]
			continue
		}
		if m := optionsRe.FindStringSubmatch(line); m != nil {
			if current.Options == nil {
				current.Options = map[string]any{}
			}
			for _, o := range parseOptions(m[1]) {
				if o.flag {
					current.Options[o.key] = true
				} else {
					current.Options[o.key] = o.value
				}
			}
			continue
		}

		if m := fieldRe.FindStringSubmatch(line); m != nil {
			rawType, tail := m[2], m[3]
			// "enum[a, b]" is cut at the first space by the field pattern
			if strings.HasPrefix(rawType, "enum[") && !strings.Contains(rawType, "]") {
				if idx := strings.Index(tail, "]"); idx >= 0 {
					rawType += tail[:idx+1]
					tail = tail[idx+1:]
				}
			}
			f, err := parseField(doc, current.Name, m[1], rawType, tail)
			if err != nil {
				return nil, fail("%v", err)
			}
			current.Fields = append(current.Fields, f)
			continue
		}
		return nil, fail("cannot parse %q", line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return doc, nil
}

func parseField(doc *Document, resource, name, rawType, tail string) (spec.RawField, error) {
	f := spec.RawField{Name: name, Type: rawType}
	if m := enumRe.FindStringSubmatch(rawType); m != nil {
		var members []string
		for _, p := range strings.Split(m[1], ",") {
			if s := strings.Trim(strings.TrimSpace(p), `"'`); s != "" {
				members = append(members, s)
			}
		}
		enum := strings.ReplaceAll(resource+"_"+name, "-", "_")
		if err := doc.addEnum(enum, members); err != nil {
			return f, err
		}
		f.Type = "enum(" + enum + ")"
	}

	no := false
	yes := true
	for _, o := range parseOptions(tail) {
		switch o.key {
		case "required":
			f.Required = true
		case "unique":
			f.Unique = true
		case "default":
			f.Default = o.value
		case "pattern":
			f.Pattern = o.value
		case "min_length", "max_length":
			n, err := strconv.Atoi(o.value)
			if err != nil {
				return f, fmt.Errorf("field %s: %s must be an integer", name, o.key)
			}
			if o.key == "min_length" {
				f.MinLength = &n
			} else {
				f.MaxLength = &n
			}
		case "min", "max":
			v, err := strconv.ParseFloat(o.value, 64)
			if err != nil {
				return f, fmt.Errorf("field %s: %s must be a number", name, o.key)
			}
			if o.key == "min" {
				f.Min = &v
			} else {
				f.Max = &v
			}
		case "readonly":
			f.Visibility.Create, f.Visibility.Update = &no, &no
		case "writeonly":
			f.Visibility.Response = &no
		case "filter":
			f.Visibility.Query = &yes
		case "create", "update", "response", "query":
			b, err := strconv.ParseBool(o.value)
			if err != nil {
				return f, fmt.Errorf("field %s: %s must be true or false", name, o.key)
			}
			switch o.key {
			case "create":
				f.Visibility.Create = &b
			case "update":
				f.Visibility.Update = &b
			case "response":
				f.Visibility.Response = &b
			case "query":
				f.Visibility.Query = &b
			}
		default:
			return f, fmt.Errorf("field %s: unknown option %q", name, o.key)
		}
	}
	return f, nil
}

func parseRelation(m []string) (spec.RawRelation, error) {
	rel := spec.RawRelation{Name: m[1], Kind: m[2], Target: m[3]}
	for _, o := range parseOptions(m[4]) {
		switch o.key {
		case "required":
			rel.Required = true
		case "external":
			rel.External = true
		case "cascade", "on_delete":
			rel.Cascade = o.value
		default:
			return rel, fmt.Errorf("relation %s: unknown option %q", rel.Name, o.key)
		}
	}
	return rel, nil
}
