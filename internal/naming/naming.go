// Package naming derives the case variants of a resource or field name.
// Everything here is a pure function of its input.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Set is the family of names derived from one canonical resource name.
type Set struct {
	Canonical         string `json:"canonical"`
	Snake             string `json:"snake"`             // order_item
	Declaration       string `json:"declaration"`       // OrderItem
	Identifier        string `json:"identifier"`        // orderItem
	Kebab             string `json:"kebab"`             // order-item
	Plural            string `json:"plural"`            // order_items
	PluralDeclaration string `json:"pluralDeclaration"` // OrderItems
	PluralIdentifier  string `json:"pluralIdentifier"`  // orderItems
	Path              string `json:"path"`              // order-items
	Human             string `json:"human"`             // Order Item
	HumanPlural       string `json:"humanPlural"`       // Order Items
}

// Derive computes the Set for name. A non-empty pluralOverride always wins
// over the rule table.
func Derive(name, pluralOverride string) Set {
	words := Words(name)
	var pluralWords []string
	if o := strings.TrimSpace(pluralOverride); o != "" {
		pluralWords = Words(o)
	} else {
		pluralWords = pluralizeWords(words)
	}
	return Set{
		Canonical:         name,
		Snake:             join(words, Snake),
		Declaration:       join(words, Pascal),
		Identifier:        join(words, Camel),
		Kebab:             join(words, Kebab),
		Plural:            join(pluralWords, Snake),
		PluralDeclaration: join(pluralWords, Pascal),
		PluralIdentifier:  join(pluralWords, Camel),
		Path:              join(pluralWords, Kebab),
		Human:             join(words, Human),
		HumanPlural:       join(pluralWords, Human),
	}
}

func pluralizeWords(words []string) []string {
	if len(words) == 0 {
		return nil
	}
	out := append([]string(nil), words...)
	out[len(out)-1] = Pluralize(out[len(out)-1])
	return out
}

// Case is a naming style a target position expects.
type Case string

const (
	Snake  Case = "snake"
	Pascal Case = "pascal"
	Camel  Case = "camel"
	Kebab  Case = "kebab"
	Upper  Case = "upper" // ORDER_ITEM
	Human  Case = "human"
)

// Apply renders name in case c.
func Apply(c Case, name string) string {
	return join(Words(name), c)
}

// Normalize maps any spelling back to snake case so names emitted in
// different styles can be compared.
func Normalize(name string) string {
	return join(Words(name), Snake)
}

// Spells reports whether emitted is name written in one of the cases a target
// may use. Case renderings are lossy ("SKUID", "AddressLine2"), so emitted is
// matched against each rendering of name rather than split back into words.
func Spells(name, emitted string) bool {
	for _, c := range []Case{Snake, Pascal, Camel, Kebab, Upper, Human} {
		if Apply(c, name) == emitted {
			return true
		}
	}
	return Normalize(emitted) == Normalize(name)
}

var titler = cases.Title(language.Und, cases.NoLower)

func join(words []string, c Case) string {
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	for i, w := range words {
		switch c {
		case Pascal:
			parts[i] = upperFirst(w)
		case Camel:
			if i == 0 {
				parts[i] = w
			} else {
				parts[i] = upperFirst(w)
			}
		case Upper:
			parts[i] = strings.ToUpper(w)
		case Human:
			parts[i] = titler.String(w)
		default:
			parts[i] = w
		}
	}
	switch c {
	case Pascal, Camel:
		return strings.Join(parts, "")
	case Kebab:
		return strings.Join(parts, "-")
	case Human:
		return strings.Join(parts, " ")
	default:
		return strings.Join(parts, "_")
	}
}

// initialisms keep their upper spelling in Pascal and camel forms.
var initialisms = map[string]string{
	"id": "ID", "url": "URL", "api": "API", "http": "HTTP", "uuid": "UUID",
	"sku": "SKU", "ip": "IP", "json": "JSON", "sql": "SQL",
}

func upperFirst(w string) string {
	if s, ok := initialisms[w]; ok {
		return s
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Words splits snake, kebab, space and camel/Pascal input into lower-case
// words. "OrderItem", "order_item", "order-item" and "orderItem" all give
// [order item]. Runs of capitals stay together: "HTTPServer" → [http server].
func Words(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(strings.TrimSpace(s))
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r):
			if len(cur) > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}
