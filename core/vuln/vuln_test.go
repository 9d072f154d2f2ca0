package vuln

import (
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
)

func TestNewAppliesCveConvention(t *testing.T) {
	now := time.Now()
	v, err := New("v1", `CVE-2021-44228: Log4Shell`, "background", severity.Low, "10.0.0.1", "", SourceManual, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name() != "CVE-2021-44228" {
		t.Errorf("got name %q", v.Name())
	}
	cve, has := v.CveID()
	if !has || cve.String() != "CVE-2021-44228" {
		t.Errorf("got cve=%q has=%v", cve.String(), has)
	}
	if v.Target() != "10.0.0.1" {
		t.Errorf("got target %q", v.Target())
	}
}

func TestNewEmptyTargetRejected(t *testing.T) {
	_, err := New("v1", "Name", "desc", severity.Low, "  ", "", SourceManual, time.Now())
	if err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestNewEmptyNameRejected(t *testing.T) {
	_, err := New("v1", "   ", "no identifiers", severity.Low, "target", "", SourceManual, time.Now())
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestMutationUpdatesTimestamp(t *testing.T) {
	t0 := time.Now()
	v, err := New("v1", "XSS", "desc", severity.Medium, "host", "", SourceManual, t0)
	if err != nil {
		t.Fatal(err)
	}
	t1 := t0.Add(time.Second)
	v.SetDescription("new description", t1)
	if !v.UpdatedAt().After(v.DiscoveredAt()) {
		t.Error("UpdatedAt should be after DiscoveredAt")
	}
	if v.UpdatedAt() != t1 {
		t.Errorf("got %v, want %v", v.UpdatedAt(), t1)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t0 := time.Now()
	v, err := New("v1", "CVE-2023-0001", "desc", severity.High, "a.example", "", SourceManual, t0)
	if err != nil {
		t.Fatal(err)
	}
	v.AddTag("reviewed", t0)
	snap := v.Snapshot()
	restored := FromSnapshot(snap)
	if restored.Name() != v.Name() || restored.Target() != v.Target() {
		t.Errorf("round trip mismatch")
	}
	if !restored.HasTag("reviewed") {
		t.Error("expected reviewed tag to survive round trip")
	}
	cve, has := restored.CveID()
	if !has || cve.String() != "CVE-2023-0001" {
		t.Errorf("cve not restored: %q %v", cve.String(), has)
	}
}

func TestInvalidSeverityFallsBackToLow(t *testing.T) {
	now := time.Now()
	v, err := New("v1", "Name", "desc", severity.Severity("bogus"), "target", "", SourceManual, now)
	if err != nil {
		t.Fatal(err)
	}
	if v.Severity() != severity.Low {
		t.Errorf("expected fallback to Low, got %v", v.Severity())
	}
}

func TestMutationsStrictlyIncreaseUpdatedAtUnderFixedClock(t *testing.T) {
	t0 := time.Unix(1000, 0)
	v, err := New("v1", "XSS", "desc", severity.Medium, "host", "", SourceManual, t0)
	if err != nil {
		t.Fatal(err)
	}
	prev := v.UpdatedAt()
	for _, mutate := range []func(){
		func() { v.SetDescription("a", t0) },
		func() { v.SetSeverity(severity.High, t0) },
		func() { v.AddTag("tag", t0) },
		func() { v.SetStatus(StatusFixed, t0) },
	} {
		mutate()
		got := v.UpdatedAt()
		if !got.After(prev) {
			t.Fatalf("updated_at did not strictly increase (%v -> %v)", prev, got)
		}
		prev = got
	}
	if v.UpdatedAt().Before(v.DiscoveredAt()) {
		t.Error("updated_at must never trail discovered_at")
	}
}
