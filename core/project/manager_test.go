package project

import (
	"errors"
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(func() time.Time { return time.Unix(0, 0) })
	p, err := m.Create("acme", "a test project")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "acme" {
		t.Fatalf("got %q", p.Name())
	}
	got, err := m.Get("acme")
	if err != nil || got != p {
		t.Fatalf("Get returned wrong project: %v %v", got, err)
	}
}

func TestManagerCreateDuplicateRejected(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Create("acme", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("acme", ""); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestManagerCreateEmptyNameRejected(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Create("  ", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Get("nope"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}
}

func TestManagerDeleteClearsCurrent(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Create("acme", "")
	if err := m.Select("acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete("acme"); err != nil {
		t.Fatal(err)
	}
	if m.CurrentName() != "" {
		t.Error("expected current to be cleared after delete")
	}
	if _, err := m.Get("acme"); !errors.Is(err, ErrNameNotFound) {
		t.Fatal("expected project to be gone")
	}
}

func TestManagerRenameUpdatesCurrentAndIndex(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Create("acme", "")
	_ = m.Select("acme")

	if err := m.Rename("acme", "acme-2"); err != nil {
		t.Fatal(err)
	}
	if m.CurrentName() != "acme-2" {
		t.Errorf("expected current to follow rename, got %q", m.CurrentName())
	}
	if _, err := m.Get("acme"); !errors.Is(err, ErrNameNotFound) {
		t.Error("old name should be gone")
	}
	p, err := m.Get("acme-2")
	if err != nil || p.Name() != "acme-2" {
		t.Fatalf("got %v %v", p, err)
	}
}

func TestManagerRenameToExistingNameRejected(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Create("acme", "")
	_, _ = m.Create("other", "")
	if err := m.Rename("acme", "other"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestManagerRenameUnknownRejected(t *testing.T) {
	m := NewManager(nil)
	if err := m.Rename("ghost", "x"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}
}

func TestManagerSelectDeselect(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Create("acme", "")
	if m.Current() != nil {
		t.Fatal("expected no current project initially")
	}
	if err := m.Select("acme"); err != nil {
		t.Fatal(err)
	}
	if m.Current() == nil || m.Current().Name() != "acme" {
		t.Fatal("expected acme to be current")
	}
	m.Deselect()
	if m.Current() != nil {
		t.Fatal("expected current cleared")
	}
}

func TestManagerSelectUnknownRejected(t *testing.T) {
	m := NewManager(nil)
	if err := m.Select("ghost"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}
}

func TestManagerListSorted(t *testing.T) {
	m := NewManager(nil)
	_, _ = m.Create("zebra", "")
	_, _ = m.Create("apple", "")
	got := m.List()
	if len(got) != 2 || got[0] != "apple" || got[1] != "zebra" {
		t.Fatalf("expected sorted list, got %v", got)
	}
}

func TestManagerAddTargetAndVulnerability(t *testing.T) {
	now := time.Now()
	m := NewManager(func() time.Time { return now })
	_, _ = m.Create("acme", "")

	if err := m.AddTarget("acme", "a.example"); err != nil {
		t.Fatal(err)
	}

	v, err := vuln.New("1", "SQLi", "desc", severity.High, "a.example", "", vuln.SourceManual, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddVulnerability("acme", v); err != nil {
		t.Fatal(err)
	}

	p, _ := m.Get("acme")
	if len(p.Tree().FindByTarget("a.example")) != 1 {
		t.Fatal("expected vulnerability to be indexed")
	}

	removed, err := m.RemoveVulnerability("acme", "1")
	if err != nil || removed == nil {
		t.Fatalf("got %v %v", removed, err)
	}

	rtargets, err := m.RemoveTarget("acme", "a.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(rtargets) != 0 {
		t.Fatalf("expected no further cascaded removals, got %v", rtargets)
	}
}

func TestManagerOperationsOnUnknownProject(t *testing.T) {
	m := NewManager(nil)
	if err := m.AddTarget("ghost", "a.example"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}
	if _, err := m.RemoveTarget("ghost", "a.example"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound, got %v", err)
	}
}

func TestMutationsStrictlyIncreaseUpdatedAt(t *testing.T) {
	// A fixed clock is the worst case: every mutation sees the same now,
	// and updated_at must still strictly increase on each one.
	fixed := time.Unix(1000, 0)
	m := NewManager(func() time.Time { return fixed })
	p, err := m.Create("acme", "")
	if err != nil {
		t.Fatal(err)
	}

	prev := p.UpdatedAt()
	step := func(name string, mutate func()) {
		t.Helper()
		mutate()
		got := p.UpdatedAt()
		if !got.After(prev) {
			t.Errorf("%s: updated_at did not strictly increase (%v -> %v)", name, prev, got)
		}
		prev = got
	}

	step("AddTarget", func() {
		if err := m.AddTarget("acme", "a.example"); err != nil {
			t.Fatal(err)
		}
	})
	v, err := vuln.New("v1", "SQLi", "", severity.High, "a.example", "", vuln.SourceManual, fixed)
	if err != nil {
		t.Fatal(err)
	}
	step("AddVulnerability", func() {
		if err := m.AddVulnerability("acme", v); err != nil {
			t.Fatal(err)
		}
	})
	step("SetVulnerabilitySeverity", func() {
		if err := m.SetVulnerabilitySeverity("acme", "v1", severity.Critical); err != nil {
			t.Fatal(err)
		}
	})
	step("RemoveVulnerability", func() {
		if _, err := m.RemoveVulnerability("acme", "v1"); err != nil {
			t.Fatal(err)
		}
	})
	step("RemoveTarget", func() {
		if _, err := m.RemoveTarget("acme", "a.example"); err != nil {
			t.Fatal(err)
		}
	})
}
