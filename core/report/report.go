// Package report renders a Project's vulnerability set as a human-readable
// summary: a Meta envelope (schema version, generation timestamp, tool
// identity) wrapping a Markdown body, since the "generate report" command
// returns plain text/REPL output rather than a CI artifact file.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
	"github.com/pentestassist/pentestassist/core/vulntree"
)

const schemaVersion = "1.0.0"

// Render produces a Markdown report for a project: a stats summary followed
// by a per-severity finding listing.
func Render(projectName string, stats vulntree.Stats, vulns []*vuln.Vulnerability, generatedAt time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Vulnerability Report: %s\n\n", projectName)
	fmt.Fprintf(&sb, "_schema %s, generated %s_\n\n", schemaVersion, generatedAt.UTC().Format(time.RFC3339))

	fmt.Fprintf(&sb, "## Summary\n\n")
	fmt.Fprintf(&sb, "- Total findings: %d\n", stats.Total)
	fmt.Fprintf(&sb, "- Distinct CVEs: %d\n", stats.DistinctCVEs)
	fmt.Fprintf(&sb, "- Targets: %d\n\n", len(stats.ByTarget))

	fmt.Fprintf(&sb, "| Severity | Count |\n|---|---|\n")
	for _, sev := range severity.All() {
		fmt.Fprintf(&sb, "| %s | %d |\n", sev, stats.BySeverity[sev])
	}
	sb.WriteString("\n")

	bySeverity := make(map[severity.Severity][]*vuln.Vulnerability)
	for _, v := range vulns {
		bySeverity[v.Severity()] = append(bySeverity[v.Severity()], v)
	}

	for _, sev := range severity.All() {
		group := bySeverity[sev]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s (%d)\n\n", sev, len(group))
		for _, v := range group {
			fmt.Fprintf(&sb, "- **%s** on `%s`", v.DisplayName(true), v.Target())
			if v.Location() != "" {
				fmt.Fprintf(&sb, " (%s)", v.Location())
			}
			fmt.Fprintf(&sb, " [%s]\n", v.Status())
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
