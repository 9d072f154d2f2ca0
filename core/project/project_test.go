package project

import (
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

func TestAddTargetIdempotent(t *testing.T) {
	now := time.Now()
	p := newProject("acme", "", now)
	if err := p.AddTarget("a.example", now); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTarget("a.example", now); err != nil {
		t.Fatal(err)
	}
	if got := p.Targets(); len(got) != 1 {
		t.Fatalf("expected single target, got %v", got)
	}
}

func TestAddTargetEmptyRejected(t *testing.T) {
	p := newProject("acme", "", time.Now())
	if err := p.AddTarget("  ", time.Now()); err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestRemoveTargetCascades(t *testing.T) {
	now := time.Now()
	p := newProject("acme", "", now)
	_ = p.AddTarget("a.example", now)

	v, err := vuln.New("1", "SQLi", "desc", severity.High, "a.example", "", vuln.SourceManual, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddVulnerability(v, now); err != nil {
		t.Fatal(err)
	}

	removed := p.RemoveTarget("a.example", now)
	if len(removed) != 1 {
		t.Fatalf("expected 1 cascaded removal, got %d", len(removed))
	}
	if p.HasTarget("a.example") {
		t.Error("target should be gone")
	}
	if len(p.Tree().FindByTarget("a.example")) != 0 {
		t.Error("tree should have no entries for removed target")
	}
}

func TestAddVulnerabilityRegistersTargetImplicitly(t *testing.T) {
	now := time.Now()
	p := newProject("acme", "", now)
	v, err := vuln.New("1", "SQLi", "desc", severity.High, "new.example", "", vuln.SourceManual, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddVulnerability(v, now); err != nil {
		t.Fatal(err)
	}
	if !p.HasTarget("new.example") {
		t.Error("expected target to be implicitly registered")
	}
}

func TestRenameUpdatesTimestamp(t *testing.T) {
	t0 := time.Now()
	p := newProject("acme", "", t0)
	t1 := t0.Add(time.Minute)
	p.rename("acme-renamed", t1)
	if p.Name() != "acme-renamed" {
		t.Fatalf("got %q", p.Name())
	}
	if p.UpdatedAt() != t1 {
		t.Errorf("got %v, want %v", p.UpdatedAt(), t1)
	}
}

func TestSortedTargetsDoesNotMutateInsertionOrder(t *testing.T) {
	now := time.Now()
	p := newProject("acme", "", now)
	_ = p.AddTarget("z.example", now)
	_ = p.AddTarget("a.example", now)

	if got := p.Targets(); got[0] != "z.example" || got[1] != "a.example" {
		t.Fatalf("insertion order not preserved: %v", got)
	}
	sorted := p.SortedTargets()
	if sorted[0] != "a.example" || sorted[1] != "z.example" {
		t.Fatalf("expected ascending order, got %v", sorted)
	}
}
