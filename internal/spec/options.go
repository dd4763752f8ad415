package spec

import (
	"fmt"
	"strings"

	"resforge/internal/diag"
	"resforge/internal/typereg"
)

// Options the engine itself understands. Anything else is passed through to
// templates with a warning.
const (
	OptAuditFields = "audit-fields"
	OptTimestamps  = "timestamps"
	OptSoftDelete  = "soft-delete"
	OptPagination  = "pagination"
	OptVersioned   = "versioned"
	OptIDType      = "id-type"
)

// Soft delete is either a boolean flag or a nullable timestamp. The two are
// different semantic types and are never folded into one another.
const (
	SoftDeleteFlag      = "flag"
	SoftDeleteTimestamp = "timestamp"
)

var boolOptions = map[string]bool{
	OptAuditFields: true,
	OptTimestamps:  true,
	OptPagination:  true,
	OptVersioned:   true,
}

// normalizeOptions turns raw option values into strings.
func normalizeOptions(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		switch t := v.(type) {
		case nil:
			out[key] = "true"
		case string:
			out[key] = strings.TrimSpace(t)
		default:
			out[key] = fmt.Sprintf("%v", t)
		}
	}
	return out
}

func checkOptions(opts map[string]string) diag.Problems {
	var ps diag.Problems

	for _, name := range sortedKeys(opts) {
		v := opts[name]
		switch {
		case boolOptions[name]:
			if _, ok := parseBool(v); !ok {
				ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidOption,
					"option %q expects a boolean, got %q", name, v))
			}
		case name == OptSoftDelete:
			switch strings.ToLower(v) {
			case SoftDeleteFlag, SoftDeleteTimestamp, "false", "no", "0", "off":
			default:
				ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidOption,
					"option %q must be %q or %q, got %q", name, SoftDeleteFlag, SoftDeleteTimestamp, v))
			}
		case name == OptIDType:
			switch typereg.Kind(strings.ToLower(v)) {
			case typereg.KindIdentifier, typereg.KindInteger, typereg.KindString:
			default:
				ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeInvalidOption,
					"option %q must be identifier, integer or string, got %q", name, v))
			}
		default:
			ps = append(ps, diag.Warnf(diag.StageSpec, diag.CodeUnknownOption,
				"option %q is not understood by the engine and is passed to templates as is", name))
		}
	}

	// combinations
	if ts, ok := opts[OptTimestamps]; ok {
		if b, ok := parseBool(ts); ok && !b {
			if af, ok := parseBool(opts[OptAuditFields]); ok && af {
				ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeOptionConflict,
					"%s=false conflicts with %s, which adds created_at/updated_at", OptTimestamps, OptAuditFields))
			}
			if strings.EqualFold(opts[OptSoftDelete], SoftDeleteTimestamp) {
				ps = append(ps, diag.Errorf(diag.StageSpec, diag.CodeOptionConflict,
					"%s=false conflicts with %s=%s; use %s=%s", OptTimestamps, OptSoftDelete, SoftDeleteTimestamp, OptSoftDelete, SoftDeleteFlag))
			}
		}
	}
	return ps
}

func softDeleteMode(opts map[string]string) string {
	switch strings.ToLower(opts[OptSoftDelete]) {
	case SoftDeleteFlag:
		return SoftDeleteFlag
	case SoftDeleteTimestamp:
		return SoftDeleteTimestamp
	}
	return ""
}

// IDKind is the identifier kind raw asks for. Batch runs register it before
// any resource of the batch is validated.
func (r Raw) IDKind() typereg.Kind {
	if v, ok := normalizeOptions(r.Options)[OptIDType]; ok {
		return typereg.Kind(strings.ToLower(v))
	}
	return typereg.KindIdentifier
}
