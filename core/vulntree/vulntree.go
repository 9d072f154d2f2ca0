// Package vulntree implements VulnerabilityTree, the hierarchical
// target→service→location store with secondary indices by target,
// severity, and CVE. byID/byTarget/bySeverity/byCVE lookup maps are kept in
// lockstep with the nested target/service/location leaf structure on every
// mutation.
package vulntree

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pentestassist/pentestassist/core/cveid"
	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

// ErrDuplicateID is returned by Add when a vulnerability with the same ID
// already exists in the tree.
var ErrDuplicateID = errors.New("duplicate vulnerability id")

// UnknownService is the bucket name used when a location's service cannot be
// determined.
const UnknownService = "_unknown_"

// UnknownLocation is the leaf key used when a vulnerability has no location.
const UnknownLocation = "_unknown_"

// portServices maps well-known ports to service names. This table is
// treated as configuration and can be extended by callers via
// RegisterPortService.
var portServices = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "TELNET",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	139:   "SMB",
	143:   "IMAP",
	443:   "HTTPS",
	445:   "SMB",
	3306:  "MYSQL",
	3389:  "RDP",
	5432:  "POSTGRES",
	6379:  "REDIS",
	8080:  "HTTP",
	8443:  "HTTPS",
	27017: "MONGODB",
}

var portServiceMu sync.RWMutex

// RegisterPortService extends the port→service mapping used by ServiceOf.
func RegisterPortService(port int, service string) {
	portServiceMu.Lock()
	defer portServiceMu.Unlock()
	portServices[port] = service
}

// ServiceOf derives the service/protocol bucket for a location string. If
// location looks like a URL, the scheme is the service. If it looks like
// host:port[/...], the port maps to a known service name. Otherwise
// UnknownService.
func ServiceOf(location string) string {
	if location == "" {
		return UnknownService
	}
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Host != "" {
		return strings.ToUpper(u.Scheme)
	}
	host := location
	if idx := strings.Index(location, "/"); idx >= 0 {
		host = location[:idx]
	}
	if _, portStr, err := net.SplitHostPort(host); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			portServiceMu.RLock()
			svc, ok := portServices[port]
			portServiceMu.RUnlock()
			if ok {
				return svc
			}
		}
	}
	return UnknownService
}

type leaf struct {
	vulns []*vuln.Vulnerability
}

type serviceBucket struct {
	locations map[string]*leaf
}

type targetBucket struct {
	services map[string]*serviceBucket
}

// Stats summarizes the tree's current contents.
type Stats struct {
	Total        int
	BySeverity   map[severity.Severity]int
	ByTarget     map[string]int
	DistinctCVEs int
}

// Tree is the three-level target→service→location store plus secondary
// indices. All public methods are safe for concurrent use; callers that need
// a stable multi-operation view should hold their own lock around a batch of
// calls; the owning Project does this, see core/project.
type Tree struct {
	mu sync.RWMutex

	targets map[string]*targetBucket // level 1→2→3

	byID       map[string]location // vuln id -> leaf coordinates, for O(1) remove
	byTarget   map[string]map[string]struct{}
	bySeverity map[severity.Severity]map[string]struct{}
	byCVE      map[string]map[string]struct{}

	statsDirty bool
	statsCache Stats
}

type location struct {
	target, service, loc string
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{
		targets:    make(map[string]*targetBucket),
		byID:       make(map[string]location),
		byTarget:   make(map[string]map[string]struct{}),
		bySeverity: make(map[severity.Severity]map[string]struct{}),
		byCVE:      make(map[string]map[string]struct{}),
		statsDirty: true,
	}
}

// Add inserts v at the leaf derived from (v.Target(), ServiceOf(v.Location()),
// v.Location()). Returns ErrDuplicateID if a vulnerability with the same ID
// already exists anywhere in the tree.
func (t *Tree) Add(v *vuln.Vulnerability) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[v.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, v.ID())
	}

	target := v.Target()
	loc := v.Location()
	if loc == "" {
		loc = UnknownLocation
	}
	svc := ServiceOf(v.Location())

	tb, ok := t.targets[target]
	if !ok {
		tb = &targetBucket{services: make(map[string]*serviceBucket)}
		t.targets[target] = tb
	}
	sb, ok := tb.services[svc]
	if !ok {
		sb = &serviceBucket{locations: make(map[string]*leaf)}
		tb.services[svc] = sb
	}
	lf, ok := sb.locations[loc]
	if !ok {
		lf = &leaf{}
		sb.locations[loc] = lf
	}
	lf.vulns = append(lf.vulns, v)

	t.byID[v.ID()] = location{target: target, service: svc, loc: loc}

	indexAdd(t.byTarget, target, v.ID())
	severityIndexAdd(t.bySeverity, v.Severity(), v.ID())
	if cve, has := v.CveID(); has {
		indexAdd(t.byCVE, cve.String(), v.ID())
	}
	t.statsDirty = true
	return nil
}

func indexAdd(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

func severityIndexAdd(idx map[severity.Severity]map[string]struct{}, key severity.Severity, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

// Remove deletes the vulnerability with the given ID from its leaf and all
// indices, returning it. Returns nil if no such ID exists.
func (t *Tree) Remove(id string) *vuln.Vulnerability {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

func (t *Tree) removeLocked(id string) *vuln.Vulnerability {
	loc, ok := t.byID[id]
	if !ok {
		return nil
	}

	tb := t.targets[loc.target]
	sb := tb.services[loc.service]
	lf := sb.locations[loc.loc]

	var removed *vuln.Vulnerability
	kept := lf.vulns[:0]
	for _, v := range lf.vulns {
		if v.ID() == id {
			removed = v
			continue
		}
		kept = append(kept, v)
	}
	lf.vulns = kept

	if len(lf.vulns) == 0 {
		delete(sb.locations, loc.loc)
	}
	if len(sb.locations) == 0 {
		delete(tb.services, loc.service)
	}
	if len(tb.services) == 0 {
		delete(t.targets, loc.target)
	}

	delete(t.byID, id)
	deleteFromSet(t.byTarget, loc.target, id)
	if removed != nil {
		deleteFromSeveritySet(t.bySeverity, removed.Severity(), id)
		if cve, has := removed.CveID(); has {
			deleteFromSet(t.byCVE, cve.String(), id)
		}
	}
	t.statsDirty = true
	return removed
}

func deleteFromSet(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}

func deleteFromSeveritySet(idx map[severity.Severity]map[string]struct{}, key severity.Severity, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// UpdateSeverity changes the severity of the vulnerability with the given
// id, moving its index entry to the new severity bucket in the same
// critical section so readers never observe the two out of step. Reports
// whether the id was found.
func (t *Tree) UpdateSeverity(id string, sev severity.Severity, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.byID[id]
	if !ok {
		return false
	}
	lf := t.targets[loc.target].services[loc.service].locations[loc.loc]
	for _, v := range lf.vulns {
		if v.ID() != id {
			continue
		}
		deleteFromSeveritySet(t.bySeverity, v.Severity(), id)
		v.SetSeverity(sev, now)
		severityIndexAdd(t.bySeverity, v.Severity(), id)
		t.statsDirty = true
		return true
	}
	return false
}

// UpdateLocation changes the location of the vulnerability with the given
// id, re-slotting it under the leaf derived from the new location. Reports
// whether the id was found.
func (t *Tree) UpdateLocation(id, location string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return false
	}
	v := t.removeLocked(id)
	if v == nil {
		return false
	}
	v.SetLocation(location, now)

	target := v.Target()
	loc := v.Location()
	if loc == "" {
		loc = UnknownLocation
	}
	svc := ServiceOf(v.Location())

	tb, ok := t.targets[target]
	if !ok {
		tb = &targetBucket{services: make(map[string]*serviceBucket)}
		t.targets[target] = tb
	}
	sb, ok := tb.services[svc]
	if !ok {
		sb = &serviceBucket{locations: make(map[string]*leaf)}
		tb.services[svc] = sb
	}
	lf, ok := sb.locations[loc]
	if !ok {
		lf = &leaf{}
		sb.locations[loc] = lf
	}
	lf.vulns = append(lf.vulns, v)

	t.byID[id] = locationOf(target, svc, loc)
	indexAdd(t.byTarget, target, id)
	severityIndexAdd(t.bySeverity, v.Severity(), id)
	if cve, has := v.CveID(); has {
		indexAdd(t.byCVE, cve.String(), id)
	}
	t.statsDirty = true
	return true
}

func locationOf(target, service, loc string) location {
	return location{target: target, service: service, loc: loc}
}

// RemoveAllForTarget removes every vulnerability belonging to target,
// returning the removed items. Used when a target is dropped from a
// Project, which must cascade-remove its vulnerabilities.
func (t *Tree) RemoveAllForTarget(target string) []*vuln.Vulnerability {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, ok := t.byTarget[target]
	if !ok {
		return nil
	}
	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	removed := make([]*vuln.Vulnerability, 0, len(idList))
	for _, id := range idList {
		if v := t.removeLocked(id); v != nil {
			removed = append(removed, v)
		}
	}
	return removed
}

// FindByTarget returns all vulnerabilities for the given target.
func (t *Tree) FindByTarget(target string) []*vuln.Vulnerability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.byTarget[target]
	return t.resolveIDs(ids)
}

// FindBySeverity returns all vulnerabilities at the given severity.
func (t *Tree) FindBySeverity(s severity.Severity) []*vuln.Vulnerability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.bySeverity[s]
	return t.resolveIDs(ids)
}

// FindByCVE returns all vulnerabilities carrying the given CVE, across every
// target they were found on, ordered by target ascending.
func (t *Tree) FindByCVE(cve string) []*vuln.Vulnerability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	normalized := cve
	if id, err := cveid.Normalize(cve); err == nil {
		normalized = id.String()
	}
	ids := t.byCVE[normalized]
	out := t.resolveIDs(ids)
	sort.Slice(out, func(i, j int) bool { return out[i].Target() < out[j].Target() })
	return out
}

func (t *Tree) resolveIDs(ids map[string]struct{}) []*vuln.Vulnerability {
	out := make([]*vuln.Vulnerability, 0, len(ids))
	for id := range ids {
		if loc, ok := t.byID[id]; ok {
			lf := t.targets[loc.target].services[loc.service].locations[loc.loc]
			for _, v := range lf.vulns {
				if v.ID() == id {
					out = append(out, v)
					break
				}
			}
		}
	}
	return out
}

// SearchDescription linearly scans every vulnerability's description for
// substr, returning matches. Case-insensitive when requested.
func (t *Tree) SearchDescription(substr string, caseInsensitive bool) []*vuln.Vulnerability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	needle := substr
	if caseInsensitive {
		needle = strings.ToLower(substr)
	}
	var out []*vuln.Vulnerability
	t.walk(func(v *vuln.Vulnerability) {
		hay := v.Description()
		if caseInsensitive {
			hay = strings.ToLower(hay)
		}
		if strings.Contains(hay, needle) {
			out = append(out, v)
		}
	})
	return out
}

// Snapshot returns every vulnerability in the tree ordered by target
// ascending, then severity descending, then discovered-at ascending.
func (t *Tree) Snapshot() []*vuln.Vulnerability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var all []*vuln.Vulnerability
	t.walk(func(v *vuln.Vulnerability) { all = append(all, v) })
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Target() != b.Target() {
			return a.Target() < b.Target()
		}
		if a.Severity() != b.Severity() {
			return a.Severity().Compare(b.Severity()) > 0
		}
		return a.DiscoveredAt().Before(b.DiscoveredAt())
	})
	return all
}

func (t *Tree) walk(fn func(*vuln.Vulnerability)) {
	for _, tb := range t.targets {
		for _, sb := range tb.services {
			for _, lf := range sb.locations {
				for _, v := range lf.vulns {
					fn(v)
				}
			}
		}
	}
}

// Stats recomputes (or returns a cached, still-valid) summary of the tree's
// contents.
func (t *Tree) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.statsDirty {
		return t.statsCache
	}
	s := Stats{
		BySeverity: make(map[severity.Severity]int),
		ByTarget:   make(map[string]int),
	}
	t.walk(func(v *vuln.Vulnerability) {
		s.Total++
		s.BySeverity[v.Severity()]++
		s.ByTarget[v.Target()]++
	})
	s.DistinctCVEs = len(t.byCVE)
	t.statsCache = s
	t.statsDirty = false
	return s
}

// ValidateInvariant checks that every id in any secondary index exists in
// exactly one leaf, and vice versa. Intended for use in tests and debug
// builds, not the hot path.
func (t *Tree) ValidateInvariant() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaves := make(map[string]*vuln.Vulnerability)
	var dup string
	t.walk(func(v *vuln.Vulnerability) {
		if _, seen := leaves[v.ID()]; seen {
			dup = v.ID()
		}
		leaves[v.ID()] = v
	})
	if dup != "" {
		return fmt.Errorf("vulnerability %s present in more than one leaf", dup)
	}

	for name, idx := range map[string]map[string]map[string]struct{}{
		"target": t.byTarget,
		"cve":    t.byCVE,
	} {
		for key, set := range idx {
			for id := range set {
				if _, ok := leaves[id]; !ok {
					return fmt.Errorf("vulnerability %s present in %s index under %q but missing from any leaf", id, name, key)
				}
			}
		}
	}
	for _, set := range t.bySeverity {
		for id := range set {
			if _, ok := leaves[id]; !ok {
				return fmt.Errorf("vulnerability %s present in severity index but missing from any leaf", id)
			}
		}
	}

	for id, v := range leaves {
		if _, ok := t.byTarget[v.Target()][id]; !ok {
			return fmt.Errorf("vulnerability %s present in leaf but missing from target index", id)
		}
		if _, ok := t.bySeverity[v.Severity()][id]; !ok {
			return fmt.Errorf("vulnerability %s present in leaf but missing from severity index", id)
		}
		if cve, has := v.CveID(); has {
			if _, ok := t.byCVE[cve.String()][id]; !ok {
				return fmt.Errorf("vulnerability %s present in leaf but missing from cve index", id)
			}
		}
	}
	return nil
}
