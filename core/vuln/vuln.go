// Package vuln defines Vulnerability, the immutable-identity record that
// VulnerabilityTree and Project index and mutate. Construction always goes
// through the CVE naming discipline in core/cveid via a single constructor
// path rather than populating fields ad hoc.
package vuln

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pentestassist/pentestassist/core/cveid"
	"github.com/pentestassist/pentestassist/core/severity"
)

// ErrEmptyField is returned when a required field (name or target) is blank.
var ErrEmptyField = errors.New("field must not be empty")

// Status is the disposition of a vulnerability relative to remediation.
type Status string

// Status values.
const (
	StatusOpen          Status = "OPEN"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusFixed         Status = "FIXED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// Source identifies how a Vulnerability entered the system.
type Source string

// Source values.
const (
	SourceManual   Source = "MANUAL"
	SourceBurp     Source = "BURP"
	SourceFileScan Source = "FILE_SCAN"
	SourceImported Source = "IMPORTED"
)

// Vulnerability is a single security finding tracked within a Project. The
// identity fields (ID, CveID, Name, Target, DiscoveredAt, Source) are fixed
// at construction time; only the fields changed by the Set*, AddTag and
// RemoveTag methods may change afterward.
type Vulnerability struct {
	id           string
	name         string
	description  string
	severity     severity.Severity
	target       string
	location     string
	cveID        cveid.ID
	hasCve       bool
	tags         map[string]struct{}
	status       Status
	discoveredAt time.Time
	updatedAt    time.Time
	source       Source
}

// ID returns the vulnerability's unique, stable identifier.
func (v *Vulnerability) ID() string { return v.id }

// Name returns the display name. If a CVE is set, Name equals its canonical
// string form.
func (v *Vulnerability) Name() string { return v.name }

// Description returns the free-text description.
func (v *Vulnerability) Description() string { return v.description }

// Severity returns the current severity.
func (v *Vulnerability) Severity() severity.Severity { return v.severity }

// Target returns the host/asset this vulnerability was found on.
func (v *Vulnerability) Target() string { return v.target }

// Location returns the sub-resource (path/URL/service), or "" if unset.
func (v *Vulnerability) Location() string { return v.location }

// CveID returns the associated CVE identifier and whether one is set.
func (v *Vulnerability) CveID() (cveid.ID, bool) { return v.cveID, v.hasCve }

// Tags returns a snapshot slice of the vulnerability's tags.
func (v *Vulnerability) Tags() []string {
	out := make([]string, 0, len(v.tags))
	for t := range v.tags {
		out = append(out, t)
	}
	return out
}

// HasTag reports whether the vulnerability carries the given tag.
func (v *Vulnerability) HasTag(tag string) bool {
	_, ok := v.tags[tag]
	return ok
}

// Status returns the current disposition.
func (v *Vulnerability) Status() Status { return v.status }

// DiscoveredAt returns the immutable discovery timestamp.
func (v *Vulnerability) DiscoveredAt() time.Time { return v.discoveredAt }

// UpdatedAt returns the timestamp of the last successful mutation.
func (v *Vulnerability) UpdatedAt() time.Time { return v.updatedAt }

// Source returns the immutable provenance of the vulnerability.
func (v *Vulnerability) Source() Source { return v.source }

// DisplayName renders the vulnerability's name: the CVE string if present
// (optionally with the descriptive name in parentheses when withContext is
// requested and the two differ), otherwise the plain name.
func (v *Vulnerability) DisplayName(withContext bool) string {
	return cveid.FormatDisplay(v.hasCve, v.cveID, v.name, v.name, withContext)
}

// New constructs a Vulnerability applying the CVE naming convention. id
// is caller-supplied (unique within a Project, enforced by
// VulnerabilityTree.Add, not here) and explicitCve, if given, takes highest
// priority over any CVE-shaped text in proposedName or description.
func New(id, proposedName, description string, sev severity.Severity, target string, explicitCve string, src Source, now time.Time) (*Vulnerability, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: target", ErrEmptyField)
	}
	name, cve, hasCve := cveid.DetermineBestName(proposedName, description, explicitCve)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name", ErrEmptyField)
	}
	if !sev.Valid() {
		sev = severity.Low
	}
	return &Vulnerability{
		id:           id,
		name:         name,
		description:  description,
		severity:     sev,
		target:       strings.TrimSpace(target),
		cveID:        cve,
		hasCve:       hasCve,
		tags:         make(map[string]struct{}),
		status:       StatusOpen,
		discoveredAt: now,
		updatedAt:    now,
		source:       src,
	}, nil
}

// SetDescription mutates the description and bumps UpdatedAt.
func (v *Vulnerability) SetDescription(desc string, now time.Time) {
	v.description = desc
	v.touch(now)
}

// SetSeverity mutates the severity and bumps UpdatedAt. An invalid value is
// ignored rather than rejected, since severity parsing never fails; it
// simply has no effect here.
func (v *Vulnerability) SetSeverity(sev severity.Severity, now time.Time) {
	if !sev.Valid() {
		return
	}
	v.severity = sev
	v.touch(now)
}

// SetLocation mutates the location and bumps UpdatedAt.
func (v *Vulnerability) SetLocation(location string, now time.Time) {
	v.location = location
	v.touch(now)
}

// AddTag adds a tag and bumps UpdatedAt.
func (v *Vulnerability) AddTag(tag string, now time.Time) {
	if tag == "" {
		return
	}
	v.tags[tag] = struct{}{}
	v.touch(now)
}

// RemoveTag removes a tag and bumps UpdatedAt if it was present.
func (v *Vulnerability) RemoveTag(tag string, now time.Time) {
	if _, ok := v.tags[tag]; !ok {
		return
	}
	delete(v.tags, tag)
	v.touch(now)
}

// SetStatus mutates the status and bumps UpdatedAt.
func (v *Vulnerability) SetStatus(status Status, now time.Time) {
	v.status = status
	v.touch(now)
}

// touch advances updatedAt. Every mutation strictly increases the stamp,
// even under a coarse or fixed clock where now equals (or trails) the
// previous value.
func (v *Vulnerability) touch(now time.Time) {
	if !now.After(v.updatedAt) {
		now = v.updatedAt.Add(time.Nanosecond)
	}
	v.updatedAt = now
}

// FromBurpFinding constructs a Vulnerability from an ingested Burp issue,
// passing both the finding's name and its background/detail text through
// the CVE naming discipline so a CVE mentioned only in the detail text is
// still recognized.
func FromBurpFinding(id, findingName, backgroundAndDetail string, sev severity.Severity, target, location string, now time.Time) (*Vulnerability, error) {
	v, err := New(id, findingName, backgroundAndDetail, sev, target, "", SourceBurp, now)
	if err != nil {
		return nil, err
	}
	v.location = location
	return v, nil
}

// Snapshot is an immutable, serialization-friendly view of a Vulnerability,
// used by persistence (core/project) and rendering (command/project).
type Snapshot struct {
	ID           string
	Name         string
	Description  string
	Severity     severity.Severity
	Target       string
	Location     string
	CveID        string
	Tags         []string
	Status       Status
	DiscoveredAt time.Time
	UpdatedAt    time.Time
	Source       Source
}

// Snapshot captures the current state of v for read-only consumers.
func (v *Vulnerability) Snapshot() Snapshot {
	cve := ""
	if v.hasCve {
		cve = v.cveID.String()
	}
	return Snapshot{
		ID:           v.id,
		Name:         v.name,
		Description:  v.description,
		Severity:     v.severity,
		Target:       v.target,
		Location:     v.location,
		CveID:        cve,
		Tags:         v.Tags(),
		Status:       v.status,
		DiscoveredAt: v.discoveredAt,
		UpdatedAt:    v.updatedAt,
		Source:       v.source,
	}
}

// FromSnapshot reconstructs a Vulnerability from a persisted Snapshot,
// bypassing name/CVE arbitration since the snapshot already holds settled,
// validated values (used by the project loader).
func FromSnapshot(s Snapshot) *Vulnerability {
	v := &Vulnerability{
		id:           s.ID,
		name:         s.Name,
		description:  s.Description,
		severity:     s.Severity,
		target:       s.Target,
		location:     s.Location,
		tags:         make(map[string]struct{}, len(s.Tags)),
		status:       s.Status,
		discoveredAt: s.DiscoveredAt,
		updatedAt:    s.UpdatedAt,
		source:       s.Source,
	}
	if s.CveID != "" {
		if id, err := cveid.Normalize(s.CveID); err == nil {
			v.cveID = id
			v.hasCve = true
		}
	}
	for _, t := range s.Tags {
		v.tags[t] = struct{}{}
	}
	return v
}
