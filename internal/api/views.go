package api

import (
	"resforge/internal/diag"
	"resforge/internal/emit"
	"resforge/internal/engine"
	"resforge/internal/naming"
	"resforge/internal/spec"
)

type ArtifactView struct {
	Kind             string   `json:"kind"`
	Target           string   `json:"target"`
	Path             string   `json:"path"`
	Status           string   `json:"status,omitempty"`
	Failed           bool     `json:"failed,omitempty"`
	ReferencedFields []string `json:"referencedFields"`
	EffectiveFields  []string `json:"effectiveFields"`
	Content          string   `json:"content,omitempty"`
}

type RunView struct {
	RunID     string         `json:"runId"`
	Resource  string         `json:"resource"`
	Profile   string         `json:"profile"`
	DryRun    bool           `json:"dryRun"`
	Naming    *naming.Set    `json:"naming,omitempty"`
	Artifacts []ArtifactView `json:"artifacts"`
	Problems  diag.Problems  `json:"problems"`
	Manifest  *emit.Manifest `json:"manifest,omitempty"`
}

func newRunView(profile string, dryRun, withContent bool, res *engine.Result) RunView {
	v := RunView{
		RunID:     res.RunID,
		Profile:   profile,
		DryRun:    dryRun,
		Problems:  res.Problems,
		Manifest:  res.Manifest,
		Artifacts: []ArtifactView{},
	}
	if v.Problems == nil {
		v.Problems = diag.Problems{}
	}
	if res.Original != nil {
		v.Resource = res.Original.Name()
		names := res.Naming
		v.Naming = &names
	}
	for _, a := range res.Artifacts {
		av := ArtifactView{
			Kind:             string(a.Kind),
			Target:           a.Target,
			Path:             a.Path,
			Failed:           a.Failed,
			ReferencedFields: a.ReferencedNames(),
			EffectiveFields:  a.EffectiveFields,
		}
		if res.Manifest != nil {
			if e, ok := res.Manifest.Entry(av.Kind); ok {
				av.Status = string(e.Status)
			}
		}
		if withContent {
			av.Content = a.Content
		}
		v.Artifacts = append(v.Artifacts, av)
	}
	return v
}

// SpecView shows a validated spec; ResourceSpec keeps its fields private.
type SpecView struct {
	Name      string              `json:"name"`
	Plural    string              `json:"plural,omitempty"`
	Fields    []spec.FieldSpec    `json:"fields"`
	Relations []spec.RelationSpec `json:"relations"`
	Options   map[string]string   `json:"options"`
}

func newSpecView(s *spec.ResourceSpec) *SpecView {
	if s == nil {
		return nil
	}
	return &SpecView{
		Name:      s.Name(),
		Plural:    s.PluralOverride(),
		Fields:    s.Fields(),
		Relations: s.Relations(),
		Options:   s.Options(),
	}
}
