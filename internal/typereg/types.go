// Package typereg maps semantic field kinds to concrete types per output
// target. Resolution is pure lookup; enum and reference kinds need a side
// lookup into registered enums and resources.
package typereg

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindString     Kind = "string"
	KindText       Kind = "text"
	KindInteger    Kind = "integer"
	KindDecimal    Kind = "decimal"
	KindBoolean    Kind = "boolean"
	KindDate       Kind = "date"
	KindTimestamp  Kind = "timestamp"
	KindIdentifier Kind = "identifier"
	KindEnum       Kind = "enum"
	KindReference  Kind = "reference"
)

// Kinds lists every built-in kind in a stable order.
var Kinds = []Kind{
	KindString, KindText, KindInteger, KindDecimal, KindBoolean,
	KindDate, KindTimestamp, KindIdentifier, KindEnum, KindReference,
}

func (k Kind) Known() bool {
	for _, x := range Kinds {
		if x == k {
			return true
		}
	}
	return false
}

// Tag is the normalization class two concrete types are compared by.
type Tag string

const (
	TagTextual  Tag = "textual"
	TagNumeric  Tag = "numeric"
	TagBoolean  Tag = "boolean"
	TagTemporal Tag = "temporal"
)

// SemanticType is a kind plus its argument: the enum name for enum, the
// target resource for reference.
type SemanticType struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Arg  string `json:"arg,omitempty" yaml:"arg,omitempty"`
}

func (t SemanticType) String() string {
	if t.Arg == "" {
		return string(t.Kind)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Arg)
}

var (
	parenRe = regexp.MustCompile(`^([a-z_]+)\(\s*([A-Za-z0-9_.-]*)\s*\)$`)
	refRe   = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
)

// aliases accepted in spec input, including the older DSL spellings.
var aliases = map[string]Kind{
	"str":      KindString,
	"int":      KindInteger,
	"bigint":   KindInteger,
	"float":    KindDecimal,
	"money":    KindDecimal,
	"numeric":  KindDecimal,
	"bool":     KindBoolean,
	"datetime": KindTimestamp,
	"id":       KindIdentifier,
	"uuid":     KindIdentifier,
	"ref":      KindReference,
}

// Parse reads `decimal`, `enum(status)`, `reference(customer)` or `ref[customer]`.
// It does not check that the kind is known; that is the validator's job.
func Parse(s string) SemanticType {
	s = strings.TrimSpace(s)
	if m := refRe.FindStringSubmatch(s); m != nil {
		return SemanticType{Kind: KindReference, Arg: m[1]}
	}
	lower := strings.ToLower(s)
	if m := parenRe.FindStringSubmatch(lower); m != nil {
		k := normalizeKind(m[1])
		// keep the argument's original spelling
		arg := strings.TrimSpace(s[strings.IndexByte(s, '(')+1 : len(s)-1])
		return SemanticType{Kind: k, Arg: arg}
	}
	return SemanticType{Kind: normalizeKind(lower)}
}

func normalizeKind(s string) Kind {
	if k, ok := aliases[s]; ok {
		return k
	}
	return Kind(s)
}

// ConcreteType is one target's spelling of a semantic type.
type ConcreteType struct {
	Spelling string `json:"spelling" yaml:"spelling"`
	Tag      Tag    `json:"tag" yaml:"tag"`
}

// Mapping is the table a target profile supplies for one target.
type Mapping map[Kind]ConcreteType

func (m Mapping) clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
