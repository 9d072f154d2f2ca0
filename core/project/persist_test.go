package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

func TestPersistAndLoadRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	m := NewManager(func() time.Time { return now })

	p, err := m.Create("acme", "a test project")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddTarget("acme", "a.example"); err != nil {
		t.Fatal(err)
	}
	p.SetMetadata("owner", "alice", now)

	v, err := vuln.New("1", "CVE-2021-44228: Log4Shell", "background info", severity.Critical, "a.example", "", vuln.SourceManual, now)
	if err != nil {
		t.Fatal(err)
	}
	v.SetLocation("https://a.example/app", now)
	v.AddTag("reviewed", now)
	if err := m.AddVulnerability("acme", v); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "projects.dat")
	if err := m.PersistAll(path); err != nil {
		t.Fatalf("PersistAll: %v", err)
	}

	loaded := NewManager(func() time.Time { return now })
	if err := loaded.LoadAll(path, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	lp, err := loaded.Get("acme")
	if err != nil {
		t.Fatal(err)
	}
	if lp.Description() != "a test project" {
		t.Errorf("got description %q", lp.Description())
	}
	if !lp.HasTarget("a.example") {
		t.Error("expected target to survive round trip")
	}
	if lp.Metadata()["owner"] != "alice" {
		t.Errorf("got metadata %v", lp.Metadata())
	}

	found := lp.Tree().FindByCVE("CVE-2021-44228")
	if len(found) != 1 {
		t.Fatalf("expected 1 vulnerability, got %d", len(found))
	}
	restored := found[0]
	if restored.Location() != "https://a.example/app" {
		t.Errorf("got location %q", restored.Location())
	}
	if !restored.HasTag("reviewed") {
		t.Error("expected tag to survive round trip")
	}
	if !restored.DiscoveredAt().Equal(now) {
		t.Errorf("got discovered_at %v, want %v", restored.DiscoveredAt(), now)
	}
}

func TestLoadAllSkipsMalformedVulnerabilityLines(t *testing.T) {
	contents := `== PROJECT acme ==
desc: test
targets: a.example
---
1|CVE-2021-44228|CVE-2021-44228|CRITICAL|a.example|loc|OPEN|2024-01-01T00:00:00Z|2024-01-01T00:00:00Z|
this-line-is-garbage
== END acme ==
`
	path := filepath.Join(t.TempDir(), "projects.dat")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(nil)
	if err := m.LoadAll(path, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	p, err := m.Get("acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Tree().Snapshot()) != 1 {
		t.Fatalf("expected malformed line to be skipped, got %d vulns", len(p.Tree().Snapshot()))
	}
}

func TestLoadAllTreatsUnknownMetaKeysAsTolerated(t *testing.T) {
	contents := `== PROJECT acme ==
desc: test
targets:
meta.custom_future_key=123
---
== END acme ==
`
	path := filepath.Join(t.TempDir(), "projects.dat")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(nil)
	if err := m.LoadAll(path, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	p, err := m.Get("acme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Metadata()["custom_future_key"] != "123" {
		t.Errorf("expected unknown meta key to be retained, got %v", p.Metadata())
	}
}

func TestPersistAllIsAtomic(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Create("acme", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.dat")
	if err := m.PersistAll(path); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "projects.dat" {
			t.Errorf("expected temp file to be cleaned up, found %q", e.Name())
		}
	}
}
