// Package project implements Project and ProjectManager: the target set,
// the owned VulnerabilityTree, and the single-writer-per-project
// concurrency boundary. A per-project RWMutex guards an entire project's
// mutable state so readers may proceed concurrently with each other but
// never with a writer.
package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pentestassist/pentestassist/core/suppress"
	"github.com/pentestassist/pentestassist/core/vuln"
	"github.com/pentestassist/pentestassist/core/vulntree"
)

// ErrEmptyField is returned when a name is blank where one is required.
var ErrEmptyField = errors.New("field must not be empty")

// ErrVulnerabilityNotFound is returned when an operation references a
// vulnerability ID that does not exist in the project.
var ErrVulnerabilityNotFound = errors.New("vulnerability not found")

// Project is a named collection of targets and the vulnerabilities found on
// them. All mutation methods are safe for concurrent use; they serialize on
// an internal RWMutex.
type Project struct {
	mu sync.RWMutex

	name         string
	description  string
	targets      []string // ordered set
	targetSet    map[string]struct{}
	tree         *vulntree.Tree
	metadata     map[string]any
	suppressions *suppress.List
	createdAt    time.Time
	updatedAt    time.Time
}

// newProject constructs an empty Project. Unexported: callers go through
// ProjectManager.Create so that name uniqueness is enforced in one place.
func newProject(name, description string, now time.Time) *Project {
	return &Project{
		name:        name,
		description: description,
		targetSet:   make(map[string]struct{}),
		tree:        vulntree.New(),
		metadata:    make(map[string]any),
		createdAt:   now,
		updatedAt:   now,
	}
}

// Name returns the project's unique name.
func (p *Project) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// Description returns the project's free-text description.
func (p *Project) Description() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.description
}

// Targets returns a snapshot of the ordered target list.
func (p *Project) Targets() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.targets))
	copy(out, p.targets)
	return out
}

// HasTarget reports whether t is a member of the project's target set.
func (p *Project) HasTarget(t string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.targetSet[t]
	return ok
}

// Tree returns the project's VulnerabilityTree. Callers must not assume
// exclusivity (the tree has its own internal locking), but structural
// project operations (AddTarget/RemoveTarget) hold the project lock while
// touching it to keep "every tree target is a member of targets" atomic
// from the perspective of a concurrent reader of Targets()+Tree().
func (p *Project) Tree() *vulntree.Tree {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree
}

// Metadata returns a snapshot copy of the metadata map.
func (p *Project) Metadata() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.metadata))
	for k, v := range p.metadata {
		out[k] = v
	}
	return out
}

// SetMetadata sets a single metadata key and bumps UpdatedAt.
func (p *Project) SetMetadata(key string, value any, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata[key] = value
	p.touch(now)
}

// CreatedAt returns the immutable creation timestamp.
func (p *Project) CreatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.createdAt
}

// UpdatedAt returns the timestamp of the last successful mutation.
func (p *Project) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}

// AddTarget adds t to the project's target set. Adding an already-present
// target is a no-op that still counts as a (non-mutating) success.
func (p *Project) AddTarget(t string, now time.Time) error {
	t = strings.TrimSpace(t)
	if t == "" {
		return fmt.Errorf("%w: target", ErrEmptyField)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targetSet[t]; ok {
		return nil
	}
	p.targetSet[t] = struct{}{}
	p.targets = append(p.targets, t)
	p.touch(now)
	return nil
}

// RemoveTarget removes t from the project's target set and cascades to
// remove every vulnerability found on it.
func (p *Project) RemoveTarget(t string, now time.Time) []*vuln.Vulnerability {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targetSet[t]; !ok {
		return nil
	}
	delete(p.targetSet, t)
	for i, existing := range p.targets {
		if existing == t {
			p.targets = append(p.targets[:i], p.targets[i+1:]...)
			break
		}
	}
	removed := p.tree.RemoveAllForTarget(t)
	p.touch(now)
	return removed
}

// AddVulnerability inserts v into the project's tree. v's target must
// already be a member of the project's target set; if it is not, it is
// added implicitly (a vulnerability discovered on a new target also
// registers that target, matching how Burp imports and file-scan findings
// arrive before an operator has explicitly run "add target").
func (p *Project) AddVulnerability(v *vuln.Vulnerability, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targetSet[v.Target()]; !ok {
		p.targetSet[v.Target()] = struct{}{}
		p.targets = append(p.targets, v.Target())
	}
	if err := p.tree.Add(v); err != nil {
		return err
	}
	p.touch(now)
	return nil
}

// RemoveVulnerability removes the vulnerability with the given id.
func (p *Project) RemoveVulnerability(id string, now time.Time) *vuln.Vulnerability {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := p.tree.Remove(id)
	if removed != nil {
		p.touch(now)
	}
	return removed
}

// Rename changes the project's name. Called only by ProjectManager, which
// owns the name→Project index and must update it atomically alongside this.
func (p *Project) rename(newName string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = newName
	p.touch(now)
}

// SetDescription mutates the description and bumps UpdatedAt.
func (p *Project) SetDescription(desc string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = desc
	p.touch(now)
}

// touch advances updatedAt. Every mutation strictly increases the stamp,
// even under a coarse or fixed clock where now equals (or trails) the
// previous value.
func (p *Project) touch(now time.Time) {
	if !now.After(p.updatedAt) {
		now = p.updatedAt.Add(time.Nanosecond)
	}
	p.updatedAt = now
}

// SortedTargets returns the project's targets in ascending order, useful for
// deterministic rendering without mutating the insertion-ordered Targets().
func (p *Project) SortedTargets() []string {
	out := p.Targets()
	sort.Strings(out)
	return out
}
