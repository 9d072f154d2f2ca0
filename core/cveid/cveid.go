// Package cveid implements the CVE naming discipline used across the
// project/vulnerability engine: validation, normalization, extraction from
// free text, and the name-vs-CVE arbitration rule that decides what a
// vulnerability is displayed as.
//
// The matching strategy uses a single compiled, cached pattern applied with
// FindString / FindStringIndex rather than a hand-rolled parser, so that
// extraction never backtracks pathologically on attacker-controlled text.
package cveid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidCveFormat is returned when a string does not match the canonical
// CVE pattern.
var ErrInvalidCveFormat = errors.New("invalid CVE format")

// cvePattern matches the canonical CVE-YYYY-NNNN+ form, case-insensitively,
// anchored per-match (not per-string) so Extract can find one occurrence
// inside arbitrary surrounding text.
var cvePattern = regexp.MustCompile(`(?i)\bCVE-(\d{4})-(\d{4,})\b`)

// fullPattern is used by IsValid, which requires the entire string (after
// trimming) to be a CVE identifier.
var fullPattern = regexp.MustCompile(`(?i)^CVE-(\d{4})-(\d{4,})$`)

// minYear is the first year the CVE program assigned identifiers; earlier
// years are rejected even if the shape otherwise matches.
const minYear = 1999

// ID is a validated, canonically-formatted CVE identifier. The zero value is
// not a valid ID; always construct one via Normalize or Extract.
type ID struct {
	value string
}

// String returns the canonical "CVE-YYYY-NNNN" representation.
func (c ID) String() string {
	return c.value
}

// IsZero reports whether c is the unset zero value.
func (c ID) IsZero() bool {
	return c.value == ""
}

// Equal reports whether two IDs refer to the same CVE.
func (c ID) Equal(other ID) bool {
	return c.value == other.value
}

// IsValid reports whether s, taken as a whole (after trimming whitespace),
// matches the canonical CVE pattern. It never panics and never errors.
func IsValid(s string) bool {
	s = strings.TrimSpace(s)
	m := fullPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	return validYear(m[1])
}

// Normalize upper-cases and validates s, returning a canonical ID. Any
// deviation from the CVE-YYYY-NNNN+ shape, or a year before 1999, yields
// ErrInvalidCveFormat.
func Normalize(s string) (ID, error) {
	trimmed := strings.TrimSpace(s)
	m := fullPattern.FindStringSubmatch(trimmed)
	if m == nil || !validYear(m[1]) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidCveFormat, s)
	}
	return ID{value: fmt.Sprintf("CVE-%s-%s", m[1], m[2])}, nil
}

// Extract returns the first CVE-shaped substring found in text, or the zero
// ID and false if none is found. Multiple references: first match wins.
func Extract(text string) (ID, bool) {
	m := cvePattern.FindStringSubmatch(text)
	if m == nil {
		return ID{}, false
	}
	if !validYear(m[1]) {
		// Keep scanning past an out-of-range year in case a later, valid
		// reference exists in the same text.
		rest := text[strings.Index(strings.ToUpper(text), strings.ToUpper(m[0]))+len(m[0]):]
		return Extract(rest)
	}
	return ID{value: fmt.Sprintf("CVE-%s-%s", m[1], m[2])}, true
}

func validYear(yearStr string) bool {
	year := 0
	for _, r := range yearStr {
		year = year*10 + int(r-'0')
	}
	return year >= minYear
}

// DetermineBestName implements the priority rule for deciding a
// vulnerability's display name and associated CVE, given a proposed name, a
// free-text description, and an optional explicit CVE supplied by the
// caller. Priority order:
//  1. explicitCve, if non-empty and valid;
//  2. a CVE extracted from proposedName;
//  3. a CVE extracted from description;
//  4. the cleaned proposedName (trimmed, whitespace-collapsed), with no CVE.
//
// When a CVE is promoted in step 2 or 3, the CVE's canonical string becomes
// the name and proposedName is not used. In step 4, cleanName strips a
// leading "CVE-...: " prefix that did not parse as a valid CVE.
func DetermineBestName(proposedName, description string, explicitCve string) (name string, cve ID, hasCve bool) {
	if explicitCve != "" {
		if id, err := Normalize(explicitCve); err == nil {
			return id.String(), id, true
		}
	}
	if id, ok := Extract(proposedName); ok {
		return id.String(), id, true
	}
	if id, ok := Extract(description); ok {
		return id.String(), id, true
	}
	return cleanName(proposedName), ID{}, false
}

// cleanName trims whitespace, collapses internal runs of whitespace, and
// strips a leading "CVE-...: " style prefix if one is present but did not
// parse as a valid CVE (e.g. a truncated or malformed reference that a human
// typed into a free-text name).
func cleanName(name string) string {
	fields := strings.Fields(name)
	cleaned := strings.Join(fields, " ")
	if idx := strings.Index(cleaned, ": "); idx > 0 {
		prefix := cleaned[:idx]
		if strings.HasPrefix(strings.ToUpper(prefix), "CVE-") {
			return strings.TrimSpace(cleaned[idx+2:])
		}
	}
	return cleaned
}

// FormatDisplay renders a vulnerability's name for display. If withContext
// is true and the vulnerability carries both a CVE and a distinct
// descriptive name, the descriptive name is appended in parentheses.
func FormatDisplay(cveSet bool, cve ID, name, descriptiveName string, withContext bool) string {
	if cveSet {
		if withContext && descriptiveName != "" && descriptiveName != cve.String() {
			return fmt.Sprintf("%s (%s)", cve.String(), descriptiveName)
		}
		return cve.String()
	}
	return name
}
