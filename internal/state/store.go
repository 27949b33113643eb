package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/symphony/internal/errors"
)

// DefaultFileName is the document name used when no path is given.
const DefaultFileName = ".symphony-state.json"

// Load reads and parses the document at path. Missing files fail with
// ErrDocumentNotFound; malformed ones with ErrDocumentCorrupted.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewStateError("state file not found", errors.ErrDocumentNotFound).WithPath(path)
		}
		return nil, errors.NewStateError("failed to read state file", err).WithPath(path)
	}

	doc, err := Parse(data)
	if err != nil {
		var se *errors.StateError
		if errors.As(err, &se) {
			return nil, se.WithPath(path)
		}
		return nil, err
	}
	return doc, nil
}

// Parse decodes and structurally validates a document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewStateError(fmt.Sprintf("invalid JSON in state file: %v", err), errors.ErrDocumentCorrupted)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	for _, ps := range doc.Phases {
		if ps.Artifacts == nil {
			ps.Artifacts = []Artifact{}
		}
	}
	return &doc, nil
}

// Validate checks the structural invariants every operation relies on.
// It does not check count consistency; counts are recomputed on write.
func (d *Document) Validate() error {
	corrupt := func(format string, args ...any) error {
		return errors.NewStateError(fmt.Sprintf(format, args...), errors.ErrDocumentCorrupted)
	}

	if d.Phases == nil {
		return corrupt(`state file missing "phases" field`)
	}
	if len(d.Plan.Phases) == 0 {
		return corrupt(`state file missing "plan.phases" array with phase definitions`)
	}
	if !d.Status.Valid() {
		return corrupt("unknown orchestration status %q", d.Status)
	}

	defined := make(map[string]bool, len(d.Plan.Phases))
	for _, p := range d.Plan.Phases {
		if defined[p.ID] {
			return corrupt("duplicate phase definition %q", p.ID)
		}
		defined[p.ID] = true
		ps, ok := d.Phases[p.ID]
		if !ok || ps == nil {
			return corrupt("phase %q has a definition but no state", p.ID)
		}
		if !ps.Status.Valid() {
			return errors.NewStateError(fmt.Sprintf("unknown status %q", ps.Status), errors.ErrDocumentCorrupted).WithPhaseID(p.ID)
		}
	}
	for id := range d.Phases {
		if !defined[id] {
			return corrupt("phase %q has state but no definition", id)
		}
	}
	for _, pd := range d.PendingDecisions {
		if !defined[pd.PhaseID] {
			return corrupt("pending decision for unknown phase %q", pd.PhaseID)
		}
	}
	if d.RetryPolicy != nil {
		if err := d.RetryPolicy.Validate(); err != nil {
			return errors.NewStateError(err.Error(), errors.ErrDocumentCorrupted)
		}
	}
	return nil
}

// Marshal encodes the document as indented JSON with a trailing newline.
func Marshal(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return buf.Bytes(), nil
}

// Save recomputes the status counts, stamps UpdatedAt and atomically
// writes the document to path.
func Save(path string, d *Document, now time.Time) error {
	d.Recount()
	d.UpdatedAt = &now

	data, err := Marshal(d)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return errors.NewStateError("failed to write state file", err).WithPath(path)
	}
	return nil
}

// Create writes a new document to path, creating parent directories. It
// fails with ErrDocumentExists when path exists and overwrite is false.
func Create(path string, d *Document, overwrite bool, now time.Time) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.NewStateError("refusing to overwrite existing state file", errors.ErrDocumentExists).WithPath(path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStateError("failed to create state directory", err).WithPath(path)
	}
	return Save(path, d, now)
}
