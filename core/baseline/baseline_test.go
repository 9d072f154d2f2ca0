package baseline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

func mustVuln(t *testing.T, id, name string, sev severity.Severity, target string) *vuln.Vulnerability {
	t.Helper()
	v, err := vuln.New(id, name, "", sev, target, "", vuln.SourceManual, time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("vuln.New: %v", err)
	}
	return v
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("host", "name", severity.High, "/path")
	b := Fingerprint("host", "name", severity.High, "/path")
	if a != b {
		t.Error("expected identical inputs to fingerprint identically")
	}
	if a == Fingerprint("host", "name", severity.Low, "/path") {
		t.Error("expected severity to contribute to the fingerprint")
	}
	// Field boundaries are delimited, so shifting a character across a
	// boundary changes the fingerprint.
	if Fingerprint("ab", "c", severity.High, "") == Fingerprint("a", "bc", severity.High, "") {
		t.Error("expected field boundary to contribute to the fingerprint")
	}
}

func TestCaptureAndCompare(t *testing.T) {
	now := time.Unix(2000, 0)
	old := []*vuln.Vulnerability{
		mustVuln(t, "v1", "SQL Injection", severity.Critical, "a.example"),
		mustVuln(t, "v2", "Weak TLS", severity.Low, "b.example"),
	}
	b := Capture("Audit", old, now)
	if len(b.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.Entries))
	}

	current := []*vuln.Vulnerability{
		// Same logical finding as v1, different generated ID.
		mustVuln(t, "v9", "SQL Injection", severity.Critical, "a.example"),
		mustVuln(t, "v3", "Open redirect", severity.Medium, "a.example"),
	}
	d := b.Compare(current)
	if len(d.New) != 1 || d.New[0].Name() != "Open redirect" {
		t.Errorf("expected only the open redirect to be new, got %+v", d.New)
	}
	if len(d.Resolved) != 1 || d.Resolved[0].Name != "Weak TLS" {
		t.Errorf("expected weak TLS to be resolved, got %+v", d.Resolved)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "baseline.json")

	b := Capture("Audit", []*vuln.Vulnerability{
		mustVuln(t, "v1", "SQL Injection", severity.Critical, "a.example"),
	}, time.Unix(2000, 0))
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ProjectName != "Audit" || len(loaded.Entries) != 1 {
		t.Fatalf("unexpected loaded baseline %+v", loaded)
	}
	// The rebuilt index recognizes the baselined finding.
	d := loaded.Compare([]*vuln.Vulnerability{
		mustVuln(t, "v2", "SQL Injection", severity.Critical, "a.example"),
	})
	if len(d.New) != 0 {
		t.Errorf("expected no new findings after round trip, got %d", len(d.New))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "nested" {
			t.Errorf("unexpected leftover file %q from atomic save", e.Name())
		}
	}
}

func TestLoadMissingFileYieldsEmptyBaseline(t *testing.T) {
	b, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(b.Entries) != 0 {
		t.Errorf("expected empty baseline, got %d entries", len(b.Entries))
	}
	d := b.Compare([]*vuln.Vulnerability{
		mustVuln(t, "v1", "anything", severity.Low, "a.example"),
	})
	if len(d.New) != 1 {
		t.Errorf("expected every current finding to be new against an empty baseline")
	}
}
