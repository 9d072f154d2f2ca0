package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

// ErrNameTaken is returned by Create when a project with the given name
// already exists.
var ErrNameTaken = errors.New("project name already taken")

// ErrNameNotFound is returned by operations referencing a project name that
// does not exist.
var ErrNameNotFound = errors.New("project not found")

// Manager owns the name→Project index and the "current project" pointer. It
// is the single concurrency boundary for project lifecycle operations;
// "current project" lives as a field here rather than as a process-global,
// so multiple Managers (e.g. in tests) never interfere with each other.
type Manager struct {
	mu      sync.RWMutex
	byName  map[string]*Project
	current string // "" means none selected
	now     func() time.Time
}

// NewManager returns an empty Manager. clock lets tests and callers supply a
// deterministic time source; if nil, time.Now is used.
func NewManager(clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		byName: make(map[string]*Project),
		now:    clock,
	}
}

// Create makes a new, empty Project. name is trimmed; an empty or
// already-used name is rejected.
func (m *Manager) Create(name, description string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name", ErrEmptyField)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	p := newProject(name, description, m.now())
	m.byName[name] = p
	return p, nil
}

// Delete removes a project and its tree/indices.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	delete(m.byName, name)
	if m.current == name {
		m.current = ""
	}
	return nil
}

// Rename atomically renames a project, updating the current pointer if it
// referenced the old name.
func (m *Manager) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: new project name", ErrEmptyField)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byName[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNameNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := m.byName[newName]; exists {
		return fmt.Errorf("%w: %s", ErrNameTaken, newName)
	}
	delete(m.byName, oldName)
	p.rename(newName, m.now())
	m.byName[newName] = p
	if m.current == oldName {
		m.current = newName
	}
	return nil
}

// Get returns the named project.
func (m *Manager) Get(name string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	return p, nil
}

// List returns all project names in lexical order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byName))
	for name := range m.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Select sets the current project pointer.
func (m *Manager) Select(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	m.current = name
	return nil
}

// Deselect clears the current project pointer.
func (m *Manager) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
}

// Current returns the currently-selected project, or nil if none is set.
func (m *Manager) Current() *Project {
	m.mu.RLock()
	name := m.current
	m.mu.RUnlock()
	if name == "" {
		return nil
	}
	p, _ := m.Get(name)
	return p
}

// CurrentName returns the name of the currently-selected project, or "".
func (m *Manager) CurrentName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// AddTarget adds a target to the named project.
func (m *Manager) AddTarget(projectName, target string) error {
	p, err := m.Get(projectName)
	if err != nil {
		return err
	}
	return p.AddTarget(target, m.now())
}

// RemoveTarget removes a target (and cascades) from the named project.
func (m *Manager) RemoveTarget(projectName, target string) ([]*vuln.Vulnerability, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return nil, err
	}
	return p.RemoveTarget(target, m.now()), nil
}

// AddVulnerability inserts v into the named project's tree.
func (m *Manager) AddVulnerability(projectName string, v *vuln.Vulnerability) error {
	p, err := m.Get(projectName)
	if err != nil {
		return err
	}
	return p.AddVulnerability(v, m.now())
}

// RemoveVulnerability removes a vulnerability by id from the named project.
func (m *Manager) RemoveVulnerability(projectName, id string) (*vuln.Vulnerability, error) {
	p, err := m.Get(projectName)
	if err != nil {
		return nil, err
	}
	return p.RemoveVulnerability(id, m.now()), nil
}

// SetVulnerabilitySeverity re-ranks a vulnerability, keeping the severity
// index in step with the new value.
func (m *Manager) SetVulnerabilitySeverity(projectName, id string, sev severity.Severity) error {
	p, err := m.Get(projectName)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tree.UpdateSeverity(id, sev, m.now()) {
		return fmt.Errorf("%w: %s", ErrVulnerabilityNotFound, id)
	}
	p.touch(m.now())
	return nil
}

// SetVulnerabilityLocation moves a vulnerability to a new location leaf.
func (m *Manager) SetVulnerabilityLocation(projectName, id, location string) error {
	p, err := m.Get(projectName)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tree.UpdateLocation(id, location, m.now()) {
		return fmt.Errorf("%w: %s", ErrVulnerabilityNotFound, id)
	}
	p.touch(m.now())
	return nil
}
