package project

import (
	"fmt"
	"time"

	"github.com/pentestassist/pentestassist/core/baseline"
	"github.com/pentestassist/pentestassist/core/report"
	"github.com/pentestassist/pentestassist/core/report/sarif"
	"github.com/pentestassist/pentestassist/core/suppress"
	"github.com/pentestassist/pentestassist/core/vuln"
)

// Suppress marks a vulnerability as reviewed-and-accepted without deleting
// it: it tags the vulnerability "suppressed", sets its status to
// FALSE_POSITIVE, and records the reason in the project's suppression list.
func (m *Manager) Suppress(projectName, id, reason, by string) error {
	p, err := m.Get(projectName)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := m.now()

	found := false
	for _, v := range p.tree.Snapshot() {
		if v.ID() == id {
			v.AddTag("suppressed", now)
			v.SetStatus(vuln.StatusFalsePositive, now)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: vulnerability %s", ErrVulnerabilityNotFound, id)
	}
	if p.suppressions == nil {
		p.suppressions = suppress.NewList()
	}
	p.suppressions.Suppress(id, reason, by, now)
	p.touch(now)
	return nil
}

// Suppressions returns the project's suppression list.
func (m *Manager) Suppressions(projectName string) ([]suppress.Entry, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.suppressions == nil {
		return nil, nil
	}
	return p.suppressions.Entries(), nil
}

// Report renders a Markdown vulnerability report for the named project.
func (m *Manager) Report(projectName string, now time.Time) (string, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return "", err
	}
	stats := p.Tree().Stats()
	return report.Render(p.Name(), stats, p.Tree().Snapshot(), now), nil
}

// ExportSARIF renders the named project's vulnerabilities as a SARIF 2.1.0
// document.
func (m *Manager) ExportSARIF(projectName string) ([]byte, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return nil, err
	}
	return sarif.Generate(p.Tree().Snapshot())
}

// Baseline captures the current vulnerability set of a project as a
// baseline snapshot.
func (m *Manager) Baseline(projectName string) (*baseline.Baseline, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return nil, err
	}
	return baseline.Capture(p.Name(), p.Tree().Snapshot(), m.now()), nil
}

// DiffBaseline compares a previously-captured baseline against the
// project's current vulnerability set.
func (m *Manager) DiffBaseline(projectName string, b *baseline.Baseline) (baseline.Diff, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return baseline.Diff{}, err
	}
	return b.Compare(p.Tree().Snapshot()), nil
}
