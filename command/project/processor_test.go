package project

import (
	"strings"
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/project"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestProcessor() *Processor {
	pm := project.NewManager(fixedClock(time.Now()))
	return New(pm, fixedClock(time.Now()))
}

func TestProcessor_CreateSelectAddTarget(t *testing.T) {
	p := newTestProcessor()

	if !p.Matches(`create project "Audit"`) {
		t.Fatal("expected create project to match")
	}
	out := p.Process(`create project "Audit"`)
	if !strings.Contains(out, "created project") {
		t.Fatalf("unexpected output: %q", out)
	}

	out = p.Process(`select project "Audit"`)
	if !strings.Contains(out, "current project set") {
		t.Fatalf("unexpected output: %q", out)
	}

	out = p.Process(`add target "10.0.0.1"`)
	if !strings.Contains(out, `added target "10.0.0.1"`) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestProcessor_CVEPromotion(t *testing.T) {
	p := newTestProcessor()
	p.Process(`create project "Audit"`)
	p.Process(`select project "Audit"`)

	out := p.Process(`add vulnerability "CVE-2021-44228: Log4Shell" to 10.0.0.1`)
	if !strings.Contains(out, "CVE-2021-44228") {
		t.Fatalf("expected CVE promotion in output, got %q", out)
	}

	list := p.Process(`list vulnerabilities`)
	if !strings.HasPrefix(list, "CVE-2021-44228") {
		t.Fatalf("expected listing to begin with CVE-2021-44228, got %q", list)
	}
}

func TestProcessor_ShowCVE(t *testing.T) {
	p := newTestProcessor()
	p.Process(`create project "Audit"`)
	p.Process(`select project "Audit"`)
	p.Process(`add vulnerability "CVE-2023-0001" to a.example`)
	p.Process(`add vulnerability "CVE-2023-0001" to b.example`)

	out := p.Process(`show cve CVE-2023-0001`)
	if !strings.Contains(out, "a.example") || !strings.Contains(out, "b.example") {
		t.Fatalf("expected both targets in output, got %q", out)
	}
}

func TestProcessor_UnknownCommandDoesNotMatch(t *testing.T) {
	p := newTestProcessor()
	if p.Matches("this is not a command") {
		t.Fatal("expected no match for unrecognized input")
	}
}

func TestProcessor_RemoveTargetCascades(t *testing.T) {
	p := newTestProcessor()
	p.Process(`create project "Audit"`)
	p.Process(`select project "Audit"`)
	p.Process(`add vulnerability "Weak cipher" to 10.0.0.1`)

	out := p.Process(`remove target "10.0.0.1"`)
	if !strings.Contains(out, "1 vulnerabilities cascaded") {
		t.Fatalf("expected cascade count in output, got %q", out)
	}
}

func TestProcessor_SetSeverity(t *testing.T) {
	p := newTestProcessor()
	p.Process(`create project "Audit"`)
	p.Process(`select project "Audit"`)
	p.Process(`add vulnerability "Weak cipher" to 10.0.0.1`)

	proj, err := p.pm.Get("Audit")
	if err != nil {
		t.Fatal(err)
	}
	id := proj.Tree().Snapshot()[0].ID()

	out := p.Process(`set severity of ` + id + ` to high`)
	if !strings.Contains(out, "set to HIGH") {
		t.Fatalf("unexpected output: %q", out)
	}
	if got := proj.Tree().Snapshot()[0].Severity(); got != "HIGH" {
		t.Fatalf("severity = %s, want HIGH", got)
	}
	if err := proj.Tree().ValidateInvariant(); err != nil {
		t.Fatal(err)
	}
}

func TestProcessor_RemoveVulnerability(t *testing.T) {
	p := newTestProcessor()
	p.Process(`create project "Audit"`)
	p.Process(`select project "Audit"`)
	p.Process(`add vulnerability "Weak cipher" to 10.0.0.1`)

	proj, _ := p.pm.Get("Audit")
	id := proj.Tree().Snapshot()[0].ID()

	out := p.Process(`remove vulnerability ` + id)
	if !strings.Contains(out, "removed vulnerability") {
		t.Fatalf("unexpected output: %q", out)
	}
	if n := len(proj.Tree().Snapshot()); n != 0 {
		t.Fatalf("expected empty tree after removal, got %d", n)
	}

	out = p.Process(`remove vulnerability no-such-id`)
	if !strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected error for unknown id, got %q", out)
	}
}
