// Package engine runs the generation pipeline: validate, expand, derive
// names, render, check consistency and emit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"resforge/internal/artifact"
	"resforge/internal/consistency"
	"resforge/internal/diag"
	"resforge/internal/emit"
	"resforge/internal/naming"
	"resforge/internal/profile"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

var (
	// ErrInvalidSpec is returned when validation reports errors. Nothing is
	// rendered.
	ErrInvalidSpec = errors.New("invalid resource spec")
	// ErrInconsistent is returned in strict mode when the artifacts disagree.
	// Nothing is written.
	ErrInconsistent = errors.New("rendered artifacts are inconsistent")
)

// ManifestDir is where manifests are saved, relative to the output root.
const ManifestDir = ".resforge/runs"

type Request struct {
	Raw     spec.Raw
	Profile string
	OutDir  string
	Force   bool
	DryRun  bool
	// Strict withholds emission when the consistency check reports errors.
	Strict bool
	// RunID is generated when empty.
	RunID string
	// Enums are registered for this run only, next to the engine's own.
	Enums map[string][]string
}

type Result struct {
	RunID     string
	Original  *spec.ResourceSpec
	Derived   *spec.ResourceSpec
	Naming    naming.Set
	Artifacts []artifact.Rendered
	// Manifest is nil when the run stopped before emission.
	Manifest *emit.Manifest
	Problems diag.Problems
}

// Engine is safe for concurrent use. Every run works on a snapshot of
// Registry, so registrations made while a run is in flight do not affect it.
type Engine struct {
	Registry *typereg.Registry
	Logger   *zap.Logger
	Workers  int
}

func New(reg *typereg.Registry, logger *zap.Logger, workers int) *Engine {
	if reg == nil {
		reg = typereg.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Registry: reg, Logger: logger, Workers: workers}
}

// Generate runs the whole pipeline for one resource. The returned Result is
// non-nil whenever validation ran, also on error, so callers can report the
// problems.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	return e.generate(ctx, e.Registry.Snapshot(), req)
}

// GenerateAll runs a batch. Identifier types of every resource in the batch
// are registered first so relations between them resolve in any order.
// A failing resource does not stop the others; the error joins all failures.
func (e *Engine) GenerateAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	base := e.Registry.Snapshot()
	for _, r := range reqs {
		if name := strings.TrimSpace(r.Raw.Name); name != "" {
			base.RegisterResource(name, r.Raw.IDKind())
		}
	}
	results := make([]*Result, len(reqs))
	var errs []error
	for i, r := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.generate(ctx, base.Snapshot(), r)
		results[i] = res
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Raw.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

// Preview renders and checks without writing anything.
func (e *Engine) Preview(ctx context.Context, req Request) (*Result, error) {
	req.DryRun = true
	return e.Generate(ctx, req)
}

func (e *Engine) generate(ctx context.Context, reg *typereg.Registry, req Request) (*Result, error) {
	start := time.Now()
	p, err := profile.Lookup(req.Profile)
	if err != nil {
		return nil, err
	}
	runID := req.RunID
	if runID == "" {
		runID = emit.NewRunID(start)
	}
	log := e.Logger.With(zap.String("run", runID), zap.String("resource", req.Raw.Name), zap.String("profile", p.Name))

	res, err := e.validate(reg, p, req)
	res.RunID = runID
	if err != nil {
		log.Warn("spec rejected", zap.Int("errors", len(res.Problems.Errors())))
		return res, err
	}
	s := res.Original

	// 1) render
	r := artifact.NewRenderer(e.Workers, log)
	out, err := r.RenderAll(ctx, p.Templates, artifact.Input{
		Spec:        res.Derived,
		Names:       res.Naming,
		Registry:    reg,
		Conventions: p.Naming,
	})
	if err != nil {
		return res, err
	}
	res.Artifacts = out.Artifacts
	res.Problems = append(res.Problems, out.Problems...)

	// 2) consistency
	cps := consistency.Check(out.Artifacts, res.Derived)
	res.Problems = append(res.Problems, cps...)
	if req.Strict && cps.HasErrors() {
		log.Warn("emission withheld", zap.Int("consistency_errors", len(cps.Errors())))
		return res, fmt.Errorf("%w: %w", ErrInconsistent, cps.Err())
	}

	// 3) emit
	em := emit.New(req.OutDir, log)
	em.Force = req.Force
	em.DryRun = req.DryRun
	if e.Workers > 0 {
		em.Workers = e.Workers
	}
	m, err := em.Emit(ctx, emit.Run{ID: runID, Resource: s.Name(), Profile: p.Name}, out.Artifacts)
	if err != nil {
		return res, fmt.Errorf("emit: %w", err)
	}
	m.Problems = append(append(diag.Problems(nil), res.Problems...), m.Problems...)
	res.Problems = m.Problems
	res.Manifest = m
	if !req.DryRun {
		if err := m.Save(filepath.Join(req.OutDir, ManifestDir, runID+".json")); err != nil {
			return res, fmt.Errorf("save manifest: %w", err)
		}
	}

	log.Info("generation finished",
		zap.Int("artifacts", len(out.Artifacts)),
		zap.Int("errors", len(res.Problems.Errors())),
		zap.Int("warnings", len(res.Problems.Warnings())),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// Validate checks and expands one resource without rendering. The result
// carries the original and derived specs and the naming set.
func (e *Engine) Validate(profileName string, raw spec.Raw, enums map[string][]string) (*Result, error) {
	p, err := profile.Lookup(profileName)
	if err != nil {
		return nil, err
	}
	return e.validate(e.Registry.Snapshot(), p, Request{Raw: raw, Enums: enums})
}

func (e *Engine) validate(reg *typereg.Registry, p *profile.Profile, req Request) (*Result, error) {
	p.Install(reg)
	for name, members := range req.Enums {
		reg.RegisterEnum(name, members)
	}
	registerRelationTargets(reg, req.Raw)

	res := &Result{}
	s, ps := spec.Validate(req.Raw, reg, p.Targets())
	res.Problems = append(res.Problems, ps...)
	if ps.HasErrors() {
		return res, fmt.Errorf("%w: %w", ErrInvalidSpec, ps.Err())
	}
	res.Original = s
	res.Derived = spec.Expand(s)
	res.Naming = naming.Derive(s.Name(), s.PluralOverride())
	return res, nil
}

// registerRelationTargets makes external relation targets resolvable with
// the default identifier kind. Known resources keep their registration.
func registerRelationTargets(reg *typereg.Registry, raw spec.Raw) {
	if name := strings.TrimSpace(raw.Name); name != "" && !reg.HasResource(name) {
		reg.RegisterResource(name, raw.IDKind())
	}
	for _, r := range raw.Relations {
		t := strings.TrimSpace(r.Target)
		if r.External && t != "" && !reg.HasResource(t) {
			reg.RegisterResource(t, typereg.KindIdentifier)
		}
	}
}
