package naming

import "strings"

var irregular = map[string]string{
	"person":    "people",
	"child":     "children",
	"man":       "men",
	"woman":     "women",
	"mouse":     "mice",
	"goose":     "geese",
	"foot":      "feet",
	"tooth":     "teeth",
	"ox":        "oxen",
	"datum":     "data",
	"leaf":      "leaves",
	"life":      "lives",
	"knife":     "knives",
	"wife":      "wives",
	"half":      "halves",
	"analysis":  "analyses",
	"crisis":    "crises",
	"criterion": "criteria",
}

var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"news":        true,
	"series":      true,
	"species":     true,
	"sheep":       true,
	"fish":        true,
	"metadata":    true,
	"feedback":    true,
	"data":        true,
}

// Pluralize applies the rule table to a single lower-case word.
func Pluralize(w string) string {
	lw := strings.ToLower(w)
	if uncountable[lw] {
		return lw
	}
	if p, ok := irregular[lw]; ok {
		return p
	}
	switch {
	case strings.HasSuffix(lw, "y") && len(lw) > 1 && !isVowel(lw[len(lw)-2]):
		return lw[:len(lw)-1] + "ies"
	case strings.HasSuffix(lw, "s"), strings.HasSuffix(lw, "x"), strings.HasSuffix(lw, "z"),
		strings.HasSuffix(lw, "ch"), strings.HasSuffix(lw, "sh"):
		return lw + "es"
	}
	return lw + "s"
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
