package emit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"resforge/internal/artifact"
	"resforge/internal/diag"
)

// Emitter writes artifacts under Root. An existing file with different
// content is left alone and reported as a conflict unless Force is set.
type Emitter struct {
	Root    string
	Force   bool
	DryRun  bool
	Workers int
	Logger  *zap.Logger
}

func New(root string, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{Root: root, Workers: 4, Logger: logger}
}

// Run identifies the manifest being built.
type Run struct {
	ID       string
	Resource string
	Profile  string
}

// Emit writes every non-failed artifact and returns the manifest, entries in
// artifact order. Per-file writes run concurrently; the manifest is final
// only after all of them. The error is for I/O failures, never conflicts.
func (e *Emitter) Emit(ctx context.Context, run Run, arts []artifact.Rendered) (*Manifest, error) {
	if run.ID == "" {
		run.ID = NewRunID(time.Now())
	}
	root, err := filepath.Abs(e.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	m := &Manifest{
		RunID:     run.ID,
		Resource:  run.Resource,
		Profile:   run.Profile,
		Root:      root,
		DryRun:    e.DryRun,
		CreatedAt: time.Now().UTC(),
		Entries:   make([]Entry, len(arts)),
	}
	problems := make([]diag.Problems, len(arts))

	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	// two artifacts on one path would race; the later one is refused
	claimed := make(map[string]artifact.Kind, len(arts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, a := range arts {
		key := filepath.Clean(filepath.FromSlash(a.Path))
		if first, dup := claimed[key]; dup && !a.Failed {
			m.Entries[i] = Entry{Path: filepath.ToSlash(a.Path), ArtifactKind: string(a.Kind), Status: StatusSkipped}
			problems[i] = diag.Problems{diag.Errorf(diag.StageEmit, diag.CodeDuplicatePath,
				"path %q is already taken by %s", a.Path, first).WithArtifact(string(a.Kind))}
			continue
		}
		if !a.Failed {
			claimed[key] = a.Kind
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, ps, err := e.emitOne(root, a)
			m.Entries[i] = entry
			problems[i] = ps
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, ps := range problems {
		m.Problems = append(m.Problems, ps...)
	}

	e.Logger.Info("artifacts emitted",
		zap.String("run", m.RunID),
		zap.String("resource", m.Resource),
		zap.Int("written", m.Count(StatusWritten)),
		zap.Int("unchanged", m.Count(StatusUnchanged)),
		zap.Int("conflict", m.Count(StatusConflict)),
		zap.Int("skipped", m.Count(StatusSkipped)),
		zap.Bool("dry_run", e.DryRun))
	return m, nil
}

func (e *Emitter) emitOne(root string, a artifact.Rendered) (Entry, diag.Problems, error) {
	entry := Entry{Path: filepath.ToSlash(a.Path), ArtifactKind: string(a.Kind)}
	if a.Failed {
		entry.Status = StatusSkipped
		return entry, nil, nil
	}

	target, ok := within(root, a.Path)
	if !ok {
		entry.Status = StatusSkipped
		return entry, diag.Problems{diag.Errorf(diag.StageEmit, diag.CodePathEscape,
			"path %q leaves the target root", a.Path).WithArtifact(string(a.Kind))}, nil
	}

	existing, err := os.ReadFile(target)
	switch {
	case err == nil:
		if bytes.Equal(existing, []byte(a.Content)) {
			entry.Status = StatusUnchanged
			return entry, nil, nil
		}
		if !e.Force {
			entry.Status = StatusConflict
			e.Logger.Warn("existing file differs, left untouched",
				zap.String("path", entry.Path), zap.String("artifact", entry.ArtifactKind))
			return entry, nil, nil
		}
		entry.Overwrote = true
	case errors.Is(err, fs.ErrNotExist):
	default:
		return entry, nil, fmt.Errorf("read %s: %w", target, err)
	}

	entry.Status = StatusWritten
	if e.DryRun {
		return entry, nil, nil
	}
	if err := writeAtomic(target, []byte(a.Content)); err != nil {
		return entry, nil, err
	}
	return entry, nil, nil
}

// within joins rel onto root and refuses results outside root.
func within(root, rel string) (string, bool) {
	if filepath.IsAbs(rel) {
		return "", false
	}
	p := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
