package dsl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches every spec file under a root.
const DefaultPattern = "**/*.{dsl,yaml,yml}"

// LoadAll loads every file under root matching pattern and merges them into
// one document. Files load in lexical order so the result is stable.
func LoadAll(root, pattern string) (*Document, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", root, err)
	}
	sort.Strings(matches)

	all := &Document{Source: root}
	for _, m := range matches {
		doc, err := Load(filepath.Join(root, filepath.FromSlash(m)))
		if err != nil {
			return nil, err
		}
		if err := all.Merge(doc); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// Load picks the parser by extension.
func Load(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".dsl":
		return LoadFile(path)
	}
	return nil, fmt.Errorf("%s: unsupported spec file type", path)
}

// Matches reports whether a path relative to a root is a spec file.
func Matches(pattern, rel string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel))
	return ok
}
