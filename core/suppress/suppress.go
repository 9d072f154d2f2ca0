// Package suppress implements suppression of reviewed-and-accepted
// vulnerabilities without deleting them: a fingerprint-keyed list, keyed
// here on vulnerability ID rather than a source-line fingerprint, since
// this engine's findings are durable Project records rather than ephemeral
// scan output.
package suppress

import (
	"strings"
	"time"
)

// Entry records why a vulnerability was suppressed and by whom.
type Entry struct {
	VulnerabilityID string
	Reason          string
	SuppressedAt    time.Time
	SuppressedBy    string
}

// List is a single project's suppression record, keyed by vulnerability ID
// for O(1) lookup.
type List struct {
	entries map[string]Entry
}

// NewList returns an empty suppression List.
func NewList() *List {
	return &List{entries: make(map[string]Entry)}
}

// Suppress records id as suppressed with the given reason.
func (l *List) Suppress(id, reason, by string, now time.Time) {
	l.entries[id] = Entry{
		VulnerabilityID: id,
		Reason:          strings.TrimSpace(reason),
		SuppressedAt:    now,
		SuppressedBy:    by,
	}
}

// Unsuppress removes a prior suppression for id.
func (l *List) Unsuppress(id string) {
	delete(l.entries, id)
}

// IsSuppressed reports whether id currently carries a suppression entry.
func (l *List) IsSuppressed(id string) bool {
	_, ok := l.entries[id]
	return ok
}

// Get returns the suppression entry for id, if any.
func (l *List) Get(id string) (Entry, bool) {
	e, ok := l.entries[id]
	return e, ok
}

// Entries returns every suppression entry, in no particular order.
func (l *List) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}
