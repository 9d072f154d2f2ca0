// Package sarif generates SARIF 2.1.0 reports from a project's
// vulnerability set: the standard envelope types (Report/Run/Tool/Driver/
// Result) with a severity→level mapping, so Burp-imported and
// file-scan-derived findings gain a standard interchange format.
package sarif

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

const (
	sarifVersion   = "2.1.0"
	sarifSchema    = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/errata01/os/schemas/sarif-schema-2.1.0.json"
	toolName       = "pentestassist"
	informationURI = "https://github.com/pentestassist/pentestassist"
)

// Report is the top-level SARIF document.
type Report struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the project/vulnerability engine.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the tool that produced the run.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains identifying information and the rule catalog.
type Driver struct {
	Name           string                `json:"name"`
	InformationURI string                `json:"informationUri"`
	Rules          []ReportingDescriptor `json:"rules"`
}

// ReportingDescriptor describes one distinct rule (here: one distinct
// vulnerability name) referenced by a Result.
type ReportingDescriptor struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	ShortDescription     Message       `json:"shortDescription"`
	DefaultConfiguration Configuration `json:"defaultConfiguration"`
}

// Configuration holds the default severity level for a rule.
type Configuration struct {
	Level string `json:"level"`
}

// Message is a SARIF message object.
type Message struct {
	Text string `json:"text"`
}

// Result is a single vulnerability expressed in SARIF format.
type Result struct {
	RuleID    string     `json:"ruleId"`
	RuleIndex int        `json:"ruleIndex"`
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations"`
}

// Location anchors a Result to a target/asset.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation names the artifact a Result pertains to. For this engine
// an "artifact" is a target/location pair rather than a source file.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
}

// ArtifactLocation names the artifact URI.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// levelFor maps the closed Severity scale onto SARIF's level vocabulary.
func levelFor(s severity.Severity) string {
	switch s {
	case severity.Critical, severity.High:
		return "error"
	case severity.Medium:
		return "warning"
	default:
		return "note"
	}
}

// Generate builds a SARIF report from a project's vulnerability snapshot.
func Generate(vulns []*vuln.Vulnerability) ([]byte, error) {
	ruleIndex := make(map[string]int)
	driver := Driver{Name: toolName, InformationURI: informationURI}
	var results []Result

	for _, v := range vulns {
		ruleID := v.Name()
		idx, ok := ruleIndex[ruleID]
		if !ok {
			idx = len(driver.Rules)
			ruleIndex[ruleID] = idx
			driver.Rules = append(driver.Rules, ReportingDescriptor{
				ID:               ruleID,
				Name:             ruleID,
				ShortDescription: Message{Text: v.Description()},
				DefaultConfiguration: Configuration{
					Level: levelFor(v.Severity()),
				},
			})
		}

		uri := v.Target()
		if v.Location() != "" {
			uri = v.Target() + "/" + v.Location()
		}

		results = append(results, Result{
			RuleID:    ruleID,
			RuleIndex: idx,
			Level:     levelFor(v.Severity()),
			Message:   Message{Text: v.Description()},
			Locations: []Location{{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{URI: uri},
				},
			}},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RuleID < results[j].RuleID
	})

	report := Report{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []Run{{
			Tool:    Tool{Driver: driver},
			Results: results,
		}},
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sarif: marshal: %w", err)
	}
	return data, nil
}
