// Package emit writes rendered artifacts under a target root and reports
// what happened to each file in a Manifest.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"resforge/internal/diag"
)

type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusConflict  Status = "conflict"
	// StatusSkipped marks an artifact that failed to render or was refused.
	StatusSkipped Status = "skipped"
)

type Entry struct {
	Path         string `json:"path"`
	Status       Status `json:"status"`
	ArtifactKind string `json:"artifactKind"`
	// Overwrote is set when a differing file was replaced under Force.
	Overwrote bool `json:"overwrote,omitempty"`
}

type Manifest struct {
	RunID     string        `json:"runId"`
	Resource  string        `json:"resource"`
	Profile   string        `json:"profile"`
	Root      string        `json:"root"`
	DryRun    bool          `json:"dryRun,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	Entries   []Entry       `json:"entries"`
	Problems  diag.Problems `json:"problems,omitempty"`
}

func (m *Manifest) Count(s Status) int {
	n := 0
	for _, e := range m.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

func (m *Manifest) Conflicts() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Status == StatusConflict {
			out = append(out, e)
		}
	}
	return out
}

// Entry returns the entry of an artifact kind.
func (m *Manifest) Entry(kind string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.ArtifactKind == kind {
			return e, true
		}
	}
	return Entry{}, false
}

func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Save writes the manifest as JSON to path.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manifest dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()
	return m.WriteJSON(f)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewRunID returns a time-ordered run identifier.
func NewRunID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
