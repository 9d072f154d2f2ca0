// Package baseline implements "what changed since last scan" diffing over a
// Project's vulnerability set: a JSON-on-disk snapshot with a
// fingerprint-keyed O(1) lookup and an atomic-save discipline, keyed on
// (target, name, severity, location) rather than a source-file fingerprint,
// since a Project's vulnerabilities are durable records, not ephemeral scan
// findings.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

const schemaVersion = "1.0.0"

// Entry is a single baselined vulnerability, keyed by Fingerprint.
type Entry struct {
	Fingerprint string            `json:"fingerprint"`
	Name        string            `json:"name"`
	Target      string            `json:"target"`
	Severity    severity.Severity `json:"severity"`
	CapturedAt  time.Time         `json:"captured_at"`
}

// Baseline is a snapshot of a project's vulnerabilities at a point in time.
type Baseline struct {
	SchemaVersion string  `json:"schema_version"`
	ProjectName   string  `json:"project_name"`
	Entries       []Entry `json:"entries"`

	index map[string]struct{}
}

// Fingerprint derives a stable identity for a vulnerability independent of
// its generated ID, so the same logical finding re-discovered in a later
// scan run is recognized as "already known" rather than reported as new.
func Fingerprint(target, name string, sev severity.Severity, location string) string {
	h := sha256.New()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(sev))
	h.Write([]byte{0})
	h.Write([]byte(location))
	return hex.EncodeToString(h.Sum(nil))
}

// Capture builds a Baseline from the current snapshot of a project's
// vulnerabilities.
func Capture(projectName string, vulns []*vuln.Vulnerability, now time.Time) *Baseline {
	b := &Baseline{
		SchemaVersion: schemaVersion,
		ProjectName:   projectName,
		index:         make(map[string]struct{}),
	}
	for _, v := range vulns {
		fp := Fingerprint(v.Target(), v.Name(), v.Severity(), v.Location())
		b.Entries = append(b.Entries, Entry{
			Fingerprint: fp,
			Name:        v.Name(),
			Target:      v.Target(),
			Severity:    v.Severity(),
			CapturedAt:  now,
		})
		b.index[fp] = struct{}{}
	}
	return b
}

// Load reads a baseline file. A missing file yields an empty baseline, not
// an error, since a first scan naturally has no prior baseline to compare
// against.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Baseline{SchemaVersion: schemaVersion, index: make(map[string]struct{})}, nil
		}
		return nil, fmt.Errorf("baseline: reading %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("baseline: parsing %s: %w", path, err)
	}
	b.buildIndex()
	return &b, nil
}

func (b *Baseline) buildIndex() {
	b.index = make(map[string]struct{}, len(b.Entries))
	for _, e := range b.Entries {
		b.index[e.Fingerprint] = struct{}{}
	}
}

// Save writes the baseline to path using a temp-file + rename atomic swap.
func (b *Baseline) Save(path string) error {
	b.SchemaVersion = schemaVersion
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("baseline: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("baseline: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("baseline: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("baseline: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("baseline: rename: %w", err)
	}
	return nil
}

// Diff reports which of the current vulnerabilities are new relative to the
// baseline (not present by fingerprint) and which baselined entries are no
// longer present (resolved/removed).
type Diff struct {
	New      []*vuln.Vulnerability
	Resolved []Entry
}

// Compare diffs the current vulnerability set against b.
func (b *Baseline) Compare(current []*vuln.Vulnerability) Diff {
	currentFPs := make(map[string]struct{}, len(current))
	var d Diff
	for _, v := range current {
		fp := Fingerprint(v.Target(), v.Name(), v.Severity(), v.Location())
		currentFPs[fp] = struct{}{}
		if _, known := b.index[fp]; !known {
			d.New = append(d.New, v)
		}
	}
	for _, e := range b.Entries {
		if _, stillPresent := currentFPs[e.Fingerprint]; !stillPresent {
			d.Resolved = append(d.Resolved, e)
		}
	}
	return d
}
