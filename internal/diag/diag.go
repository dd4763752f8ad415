// Package diag holds the problem values every pipeline stage reports.
// Problems are collected, never thrown: one run surfaces everything wrong.
package diag

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageSpec        Stage = "spec"
	StageType        Stage = "type"
	StageRender      Stage = "render"
	StageConsistency Stage = "consistency"
	StageEmit        Stage = "emit"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Codes
const (
	CodeDuplicateField        = "duplicate_field"
	CodeUnknownType           = "unknown_type"
	CodeUnmappedType          = "unmapped_type"
	CodeUnknownRelationTarget = "unknown_relation_target"
	CodeSetNullOnRequired     = "set_null_on_required"
	CodeOptionConflict        = "option_conflict"
	CodeInvalidOption         = "invalid_option"
	CodeUnknownOption         = "unknown_option"
	CodeInvalidName           = "invalid_name"
	CodeInvalidRelation       = "invalid_relation"
	CodeInvalidConstraint     = "invalid_constraint"
	CodeTypeUnresolved        = "type_unresolved"
	CodeFieldNotInScope       = "field_not_in_scope"
	CodeRenderFailed          = "render_failed"
	CodeTypeDrift             = "type_drift"
	CodeNameDrift             = "name_drift"
	CodeMissingRequiredField  = "missing_required_field"
	CodePathEscape            = "path_escape"
	CodeDuplicatePath         = "duplicate_path"
)

// Problem is one finding of one stage. Artifact and Field are empty when the
// finding is not scoped to them; Related names the second artifact of a drift.
type Problem struct {
	Stage    Stage    `json:"stage"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Artifact string   `json:"artifact,omitempty"`
	Related  string   `json:"related,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (p Problem) Error() string {
	var sb strings.Builder
	sb.WriteString(string(p.Stage))
	if p.Artifact != "" {
		sb.WriteString(" [" + p.Artifact)
		if p.Related != "" {
			sb.WriteString("/" + p.Related)
		}
		sb.WriteString("]")
	}
	if p.Field != "" {
		sb.WriteString(" " + p.Field)
	}
	fmt.Fprintf(&sb, ": %s (%s)", p.Message, p.Code)
	return sb.String()
}

func (p Problem) IsError() bool { return p.Severity == SeverityError }

func Errorf(stage Stage, code, format string, args ...any) Problem {
	return Problem{Stage: stage, Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Warnf(stage Stage, code, format string, args ...any) Problem {
	return Problem{Stage: stage, Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithField returns a copy scoped to a field.
func (p Problem) WithField(name string) Problem {
	p.Field = name
	return p
}

// WithArtifact returns a copy scoped to an artifact kind.
func (p Problem) WithArtifact(kind string) Problem {
	p.Artifact = kind
	return p
}

type Problems []Problem

func (ps Problems) Errors() Problems {
	return ps.filter(SeverityError)
}

func (ps Problems) Warnings() Problems {
	return ps.filter(SeverityWarning)
}

func (ps Problems) filter(sev Severity) Problems {
	var out Problems
	for _, p := range ps {
		if p.Severity == sev {
			out = append(out, p)
		}
	}
	return out
}

func (ps Problems) HasErrors() bool {
	for _, p := range ps {
		if p.IsError() {
			return true
		}
	}
	return false
}

// ByCode returns problems carrying the given code.
func (ps Problems) ByCode(code string) Problems {
	var out Problems
	for _, p := range ps {
		if p.Code == code {
			out = append(out, p)
		}
	}
	return out
}

// Err folds the error-severity problems into one error, or nil.
func (ps Problems) Err() error {
	errs := ps.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &Error{Problems: errs}
}

// Error carries a batch of error problems through an error return.
type Error struct {
	Problems Problems
}

func (e *Error) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0].Error()
	}
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, "  - "+p.Error())
	}
	return fmt.Sprintf("%d problems:\n%s", len(e.Problems), strings.Join(lines, "\n"))
}
