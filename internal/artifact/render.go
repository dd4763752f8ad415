package artifact

import (
	"context"
	"errors"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"resforge/internal/diag"
	"resforge/internal/naming"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

// Input is everything one generation run binds into templates. None of it
// changes while renders are in flight.
type Input struct {
	Spec        *spec.ResourceSpec
	Names       naming.Set
	Registry    *typereg.Registry
	Conventions naming.Conventions
}

// Output holds the artifacts in template order, failed ones included with
// Failed set, and the problems of every render.
type Output struct {
	Artifacts []Rendered
	Problems  diag.Problems
}

type Renderer struct {
	Workers int
	Logger  *zap.Logger
}

func NewRenderer(workers int, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{Workers: workers, Logger: logger}
}

// RenderAll renders every applicable template of set. Renders are
// independent and run concurrently; a failing template only loses its own
// artifact.
func (r *Renderer) RenderAll(ctx context.Context, set *Set, in Input) (Output, error) {
	var templates []Template
	for _, t := range set.Templates() {
		if t.Applies(in.Spec) {
			templates = append(templates, t)
		}
	}

	// names and types resolve before any body runs
	b := NewBinder(in.Spec, in.Registry, in.Conventions, set.Targets())

	results := make([]Rendered, len(templates))
	problems := make([]diag.Problems, len(templates))

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range templates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], problems[i] = r.render(t, in, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Output{}, err
	}

	var out Output
	out.Artifacts = results
	for i, ps := range problems {
		out.Problems = append(out.Problems, ps...)
		if results[i].Failed {
			r.Logger.Warn("artifact render failed",
				zap.String("resource", in.Spec.Name()),
				zap.String("artifact", string(results[i].Kind)),
				zap.Int("problems", len(ps)))
		}
	}
	return out, nil
}

// Render renders a single template.
func (r *Renderer) Render(t Template, in Input) (Rendered, diag.Problems) {
	return r.render(t, in, NewBinder(in.Spec, in.Registry, in.Conventions, []string{t.Target}))
}

func (r *Renderer) render(t Template, in Input, b *Binder) (Rendered, diag.Problems) {
	var ps diag.Problems
	out := Rendered{
		Kind:   t.Kind,
		Target: t.Target,
		Path:   t.Path(in.Names),
	}
	kind := string(t.Kind)

	nameCase := t.NameCase
	if nameCase == "" {
		nameCase = in.Conventions.Field
	}
	if nameCase == "" {
		nameCase = naming.Pascal
	}

	// 1) effective field list, in spec order
	filter := t.filter()
	var fields []BoundField
	failed := false
	for _, f := range in.Spec.Fields() {
		if !filter(f) {
			continue
		}
		bd, ok := b.lookup(t.Target, f.Name)
		if !ok {
			bd = binding{err: typereg.ErrUnknownTarget}
		}
		if bd.err != nil {
			if f.RequiredIn(kind) || (f.Required && !isContract(t.Kind)) {
				ps = append(ps, diag.Errorf(diag.StageType, diag.CodeTypeUnresolved,
					"cannot resolve %s for target %q: %v", f.Type, t.Target, bd.err).WithArtifact(kind).WithField(f.Name))
				failed = true
			} else {
				ps = append(ps, diag.Warnf(diag.StageType, diag.CodeTypeUnresolved,
					"%s left out: cannot resolve %s for target %q: %v", f.Name, f.Type, t.Target, bd.err).WithArtifact(kind).WithField(f.Name))
			}
			continue
		}
		bf := bd.field
		bf.Ident = naming.Apply(nameCase, f.Name)
		fields = append(fields, bf)
		out.EffectiveFields = append(out.EffectiveFields, f.Name)
	}
	if failed {
		out.Failed = true
		return out, ps
	}

	// 2) body
	c := newContext(t.Kind, t.Target, in.Spec, in.Names, fields, b.Relations(t.Target))
	if err := t.Body(c); err != nil {
		code := diag.CodeRenderFailed
		if errors.Is(err, ErrFieldNotInScope) {
			code = diag.CodeFieldNotInScope
		}
		ps = append(ps, diag.Errorf(diag.StageRender, code, "%v", err).WithArtifact(kind))
		out.Failed = true
		return out, ps
	}
	out.Content = c.buf.String()
	out.ReferencedFields = c.refs
	return out, ps
}

func isContract(k Kind) bool {
	switch k {
	case KindCreate, KindUpdate, KindResponse, KindQuery:
		return true
	}
	return false
}
