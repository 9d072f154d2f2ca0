// Package project implements ProjectCommandProcessor: a
// regex-anchored natural-language grammar over core/project's
// ProjectManager. Matching walks a fixed ordered list of patterns and
// commits to the first match, rather than backtracking across alternatives.
package project

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pentestassist/pentestassist/core/cveid"
	"github.com/pentestassist/pentestassist/core/project"
	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

// Processor implements the project command grammar over a *project.Manager.
type Processor struct {
	pm       *project.Manager
	now      func() time.Time
	idSeq    int
	patterns []pattern
}

type pattern struct {
	re      *regexp.Regexp
	handler func(p *Processor, m []string) string
}

// New returns a Processor dispatching natural-language project commands to
// pm. now lets tests and callers supply a deterministic clock; nil selects
// time.Now.
func New(pm *project.Manager, now func() time.Time) *Processor {
	if now == nil {
		now = time.Now
	}
	p := &Processor{pm: pm, now: now}
	p.patterns = []pattern{
		{regexp.MustCompile(`(?i)^create project "([^"]+)"(?:\s+description "([^"]*)")?$`), (*Processor).handleCreate},
		{regexp.MustCompile(`(?i)^rename project "([^"]+)" to "([^"]+)"$`), (*Processor).handleRename},
		{regexp.MustCompile(`(?i)^delete project "([^"]+)"$`), (*Processor).handleDelete},
		{regexp.MustCompile(`(?i)^(?:select|use|set current) project "([^"]+)"$`), (*Processor).handleSelect},
		{regexp.MustCompile(`(?i)^(?:deselect|clear current) project$`), (*Processor).handleDeselect},
		{regexp.MustCompile(`(?i)^list projects$`), (*Processor).handleListProjects},
		{regexp.MustCompile(`(?i)^add target "([^"]+)"(?: to project "([^"]+)")?$`), (*Processor).handleAddTarget},
		{regexp.MustCompile(`(?i)^remove target "([^"]+)"(?: from project "([^"]+)")?$`), (*Processor).handleRemoveTarget},
		{regexp.MustCompile(`(?i)^add vulnerability "([^"]+)" to ([^\s]+)(?: severity (\w+))?(?: in project "([^"]+)")?$`), (*Processor).handleAddVulnerability},
		{regexp.MustCompile(`(?i)^(?:list|show) vulnerabilities(?: in project "([^"]+)")?$`), (*Processor).handleListVulnerabilities},
		{regexp.MustCompile(`(?i)^remove vulnerability ([^\s]+)(?: from project "([^"]+)")?$`), (*Processor).handleRemoveVulnerability},
		{regexp.MustCompile(`(?i)^set severity of ([^\s]+) to (\w+)(?: in project "([^"]+)")?$`), (*Processor).handleSetSeverity},
		{regexp.MustCompile(`(?i)^show vulnerability ([^\s]+)(?: in project "([^"]+)")?$`), (*Processor).handleShowVulnerability},
		{regexp.MustCompile(`(?i)^search vulnerabilit(?:y|ies) "([^"]+)"(?: in project "([^"]+)")?$`), (*Processor).handleSearchVulnerability},
		{regexp.MustCompile(`(?i)^show cve (CVE-\d{4}-\d{4,})(?: in project "([^"]+)")?$`), (*Processor).handleShowCVE},
		{regexp.MustCompile(`(?i)^generate report(?: for project "([^"]+)")?$`), (*Processor).handleReport},
		{regexp.MustCompile(`(?i)^export sarif(?: for project "([^"]+)")?$`), (*Processor).handleExportSARIF},
		{regexp.MustCompile(`(?i)^suppress vulnerability ([^\s]+) reason "([^"]*)"(?: in project "([^"]+)")?$`), (*Processor).handleSuppress},
	}
	return p
}

// Matches reports whether line is recognized by this processor's grammar.
func (p *Processor) Matches(line string) bool {
	line = strings.TrimSpace(line)
	for _, pat := range p.patterns {
		if pat.re.MatchString(line) {
			return true
		}
	}
	return false
}

// Process dispatches line to the first matching handler and renders its
// response. Callers must check Matches first; Process on an unmatched line
// returns an error sentence rather than panicking.
func (p *Processor) Process(line string) string {
	line = strings.TrimSpace(line)
	for _, pat := range p.patterns {
		if m := pat.re.FindStringSubmatch(line); m != nil {
			return pat.handler(p, m)
		}
	}
	return "[ERROR] unrecognized project command"
}

func (p *Processor) resolveProjectName(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name := p.pm.CurrentName()
	if name == "" {
		return "", fmt.Errorf("no project selected and none specified")
	}
	return name, nil
}

func (p *Processor) handleCreate(m []string) string {
	proj, err := p.pm.Create(m[1], m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("created project %q", proj.Name())
}

func (p *Processor) handleRename(m []string) string {
	if err := p.pm.Rename(m[1], m[2]); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("renamed project %q to %q", m[1], m[2])
}

func (p *Processor) handleDelete(m []string) string {
	if err := p.pm.Delete(m[1]); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("deleted project %q", m[1])
}

func (p *Processor) handleSelect(m []string) string {
	if err := p.pm.Select(m[1]); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("current project set to %q", m[1])
}

func (p *Processor) handleDeselect(_ []string) string {
	p.pm.Deselect()
	return "current project cleared"
}

func (p *Processor) handleListProjects(_ []string) string {
	names := p.pm.List()
	if len(names) == 0 {
		return "no projects"
	}
	return "projects: " + strings.Join(names, ", ")
}

func (p *Processor) handleAddTarget(m []string) string {
	name, err := p.resolveProjectName(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	if err := p.pm.AddTarget(name, m[1]); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("added target %q to project %q", m[1], name)
}

func (p *Processor) handleRemoveTarget(m []string) string {
	name, err := p.resolveProjectName(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	removed, err := p.pm.RemoveTarget(name, m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("removed target %q from project %q (%d vulnerabilities cascaded)", m[1], name, len(removed))
}

func (p *Processor) handleAddVulnerability(m []string) string {
	proposedName, target, sevRaw, explicitProject := m[1], m[2], m[3], m[4]
	name, err := p.resolveProjectName(explicitProject)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	sev := severity.Low
	if sevRaw != "" {
		sev = severity.FromExternal(sevRaw)
	}
	p.idSeq++
	id := fmt.Sprintf("manual-%d-%d", p.now().UnixNano(), p.idSeq)
	v, err := vuln.New(id, proposedName, "", sev, target, "", vuln.SourceManual, p.now())
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	if err := p.pm.AddVulnerability(name, v); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("added vulnerability %s to %s in project %q", v.DisplayName(false), target, name)
}

func (p *Processor) handleRemoveVulnerability(m []string) string {
	name, err := p.resolveProjectName(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	removed, err := p.pm.RemoveVulnerability(name, m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	if removed == nil {
		return fmt.Sprintf("[ERROR] vulnerability %s not found in project %q", m[1], name)
	}
	return fmt.Sprintf("removed vulnerability %s from project %q", removed.DisplayName(false), name)
}

func (p *Processor) handleSetSeverity(m []string) string {
	name, err := p.resolveProjectName(m[3])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	sev := severity.FromExternal(m[2])
	if err := p.pm.SetVulnerabilitySeverity(name, m[1], sev); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("severity of %s set to %s in project %q", m[1], sev, name)
}

func (p *Processor) handleListVulnerabilities(m []string) string {
	name, err := p.resolveProjectName(m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	proj, err := p.pm.Get(name)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	vulns := proj.Tree().Snapshot()
	if len(vulns) == 0 {
		return fmt.Sprintf("project %q has no vulnerabilities", name)
	}
	var sb strings.Builder
	for _, v := range vulns {
		fmt.Fprintf(&sb, "%s [%s] %s (%s)\n", v.DisplayName(false), v.Severity(), v.Target(), v.Status())
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Processor) handleShowVulnerability(m []string) string {
	name, err := p.resolveProjectName(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	proj, err := p.pm.Get(name)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	for _, v := range proj.Tree().Snapshot() {
		if v.ID() == m[1] {
			return fmt.Sprintf("%s | severity=%s | target=%s | location=%s | status=%s",
				v.DisplayName(true), v.Severity(), v.Target(), v.Location(), v.Status())
		}
	}
	return fmt.Sprintf("[ERROR] vulnerability %s not found in project %q", m[1], name)
}

func (p *Processor) handleSearchVulnerability(m []string) string {
	name, err := p.resolveProjectName(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	proj, err := p.pm.Get(name)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	matches := proj.Tree().SearchDescription(m[1], true)
	if len(matches) == 0 {
		return fmt.Sprintf("no vulnerabilities match %q in project %q", m[1], name)
	}
	var sb strings.Builder
	for _, v := range matches {
		fmt.Fprintf(&sb, "%s [%s] %s\n", v.DisplayName(false), v.Severity(), v.Target())
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Processor) handleShowCVE(m []string) string {
	name, err := p.resolveProjectName(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	proj, err := p.pm.Get(name)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	cve, cveErr := cveid.Normalize(m[1])
	if cveErr != nil {
		return fmt.Sprintf("[ERROR] %v", cveErr)
	}
	matches := proj.Tree().FindByCVE(cve.String())
	if len(matches) == 0 {
		return fmt.Sprintf("%s not found in project %q", cve.String(), name)
	}
	targets := make([]string, 0, len(matches))
	for _, v := range matches {
		targets = append(targets, v.Target())
	}
	sort.Strings(targets)
	return fmt.Sprintf("%s found on: %s", cve.String(), strings.Join(targets, ", "))
}

func (p *Processor) handleReport(m []string) string {
	name, err := p.resolveProjectName(m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	rendered, err := p.pm.Report(name, p.now())
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return rendered
}

func (p *Processor) handleExportSARIF(m []string) string {
	name, err := p.resolveProjectName(m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	data, err := p.pm.ExportSARIF(name)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("[SARIF %d bytes]\n%s", len(data), string(data))
}

func (p *Processor) handleSuppress(m []string) string {
	name, err := p.resolveProjectName(m[3])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	if err := p.pm.Suppress(name, m[1], m[2], "operator"); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("suppressed vulnerability %s in project %q: %s", m[1], name, m[2])
}
