package sarif

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

func mustVuln(t *testing.T, id, name string, sev severity.Severity, target, location string) *vuln.Vulnerability {
	t.Helper()
	v, err := vuln.New(id, name, "desc for "+name, sev, target, "", vuln.SourceBurp, time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("vuln.New: %v", err)
	}
	if location != "" {
		v.SetLocation(location, time.Unix(1000, 0))
	}
	return v
}

func TestGenerateProducesValidSARIF(t *testing.T) {
	vulns := []*vuln.Vulnerability{
		mustVuln(t, "v1", "SQL Injection", severity.Critical, "app.example", "/login"),
		mustVuln(t, "v2", "SQL Injection", severity.Critical, "api.example", "/search"),
		mustVuln(t, "v3", "Verbose errors", severity.Low, "app.example", ""),
	}

	data, err := Generate(vulns)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("generated SARIF does not round-trip: %v", err)
	}
	if report.Version != "2.1.0" {
		t.Errorf("version = %q, want 2.1.0", report.Version)
	}
	if len(report.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(report.Runs))
	}
	run := report.Runs[0]
	if run.Tool.Driver.Name != "pentestassist" {
		t.Errorf("driver name = %q", run.Tool.Driver.Name)
	}
	// Two vulnerabilities share a name, so the rule catalog dedupes to 2.
	if len(run.Tool.Driver.Rules) != 2 {
		t.Errorf("expected 2 distinct rules, got %d", len(run.Tool.Driver.Rules))
	}
	if len(run.Results) != 3 {
		t.Errorf("expected 3 results, got %d", len(run.Results))
	}
	for _, r := range run.Results {
		if r.RuleIndex < 0 || r.RuleIndex >= len(run.Tool.Driver.Rules) {
			t.Errorf("result rule index %d out of range", r.RuleIndex)
		}
		if run.Tool.Driver.Rules[r.RuleIndex].ID != r.RuleID {
			t.Errorf("result ruleId %q does not match rule at index %d", r.RuleID, r.RuleIndex)
		}
	}
}

func TestLevelMapping(t *testing.T) {
	tests := []struct {
		sev  severity.Severity
		want string
	}{
		{severity.Critical, "error"},
		{severity.High, "error"},
		{severity.Medium, "warning"},
		{severity.Low, "note"},
		{severity.Info, "note"},
	}
	for _, tt := range tests {
		if got := levelFor(tt.sev); got != tt.want {
			t.Errorf("levelFor(%s) = %q, want %q", tt.sev, got, tt.want)
		}
	}
}
