// Package severity defines the closed, ordered severity scale used across
// the project/vulnerability engine, kept as its own package so that
// CveUtils, Vulnerability, and the file analyzer can all depend on it
// without pulling in the rest of the finding model.
package severity

import "strings"

// Severity indicates how critical a vulnerability is. Values are ordered
// from most to least severe.
type Severity string

// Severity level constants, ordered from most to least severe.
const (
	Critical Severity = "CRITICAL"
	High     Severity = "HIGH"
	Medium   Severity = "MEDIUM"
	Low      Severity = "LOW"
	Info     Severity = "INFO"
)

// rank assigns a numeric weight so severities can be compared with a total
// order. Higher is more severe.
var rank = map[Severity]int{
	Critical: 4,
	High:     3,
	Medium:   2,
	Low:      1,
	Info:     0,
}

// Valid reports whether s is one of the five closed severity values.
func (s Severity) Valid() bool {
	_, ok := rank[s]
	return ok
}

// GreaterOrEqual reports whether s is at least as severe as other.
func (s Severity) GreaterOrEqual(other Severity) bool {
	return rank[s] >= rank[other]
}

// LessOrEqual reports whether s is no more severe than other.
func (s Severity) LessOrEqual(other Severity) bool {
	return rank[s] <= rank[other]
}

// Compare returns a negative number if s is less severe than other, zero if
// equal, and a positive number if s is more severe than other.
func (s Severity) Compare(other Severity) int {
	return rank[s] - rank[other]
}

// All returns every severity value ordered from most to least severe.
func All() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// FromExternal maps an external tool's severity label onto the closed scale.
// Unknown labels never fail; they map to Low, per the documented default in
// the Burp mapping.
func FromExternal(label string) Severity {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "critical":
		return Critical
	case "high":
		return High
	case "medium", "moderate":
		return Medium
	case "low":
		return Low
	case "info", "information", "informational":
		return Info
	default:
		return Low
	}
}

// String implements fmt.Stringer.
func (s Severity) String() string {
	return string(s)
}
