// Package burp parses Burp Suite scanner XML exports into typed findings.
// The parser is hardened against XXE and decompression-bomb style XML: it
// rejects any DOCTYPE declaration before the decoder ever runs and caps
// input size, rejecting malformed or hostile input at the text layer before
// the XML parser ever sees it.
package burp

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pentestassist/pentestassist/core/severity"
)

// DefaultMaxFileBytes is the default cap on an export's size before parsing
// is refused outright.
const DefaultMaxFileBytes = 128 * 1024 * 1024

// Errors returned by Parse.
var (
	ErrNotABurpExport      = errors.New("not a burp suite export")
	ErrMalformedXML        = errors.New("malformed xml")
	ErrFileTooLarge        = errors.New("file too large")
	ErrDoctype             = errors.New("doctype declarations are not permitted")
	ErrUnsupportedEncoding = errors.New("unsupported xml encoding")
)

const maxRequestResponsePreview = 4096

// Finding is a single normalized Burp issue.
type Finding struct {
	Type                  string
	Name                  string
	Host                  string
	Path                  string
	Location              string
	Severity              severity.Severity
	FalsePositive         bool
	Confidence            string
	IssueBackground       string
	RemediationBackground string
	IssueDetail           string
	RemediationDetail     string
	Request               string
	Response              string
}

// Result is the complete, deterministically-ordered output of parsing one
// export.
type Result struct {
	Findings   []Finding
	ScanInfo   string
	Targets    []string
	SourcePath string
}

// issuesXML and issueXML mirror Burp's export schema, extracting only the
// fields the Finding type needs.
type issuesXML struct {
	XMLName   xml.Name   `xml:"issues"`
	BurpVer   string     `xml:"burpVersion,attr"`
	ScanInfo  string     `xml:"scaninfo"`
	IssueList []issueXML `xml:"issue"`
}

type issueXML struct {
	Type                  string      `xml:"type"`
	Name                  string      `xml:"name"`
	Host                  string      `xml:"host"`
	Path                  string      `xml:"path"`
	Location              string      `xml:"location"`
	Severity              string      `xml:"severity"`
	Confidence            string      `xml:"confidence"`
	IssueBackground       string      `xml:"issueBackground"`
	RemediationBackground string      `xml:"remediationBackground"`
	IssueDetail           string      `xml:"issueDetail"`
	RemediationDetail     string      `xml:"remediationDetail"`
	RequestResponse       *reqRespXML `xml:"requestresponse"`
}

type reqRespXML struct {
	Request  encodedTextXML `xml:"request"`
	Response encodedTextXML `xml:"response"`
}

type encodedTextXML struct {
	Base64 string `xml:"base64,attr"`
	Value  string `xml:",chardata"`
}

func (e encodedTextXML) decode() string {
	if e.Base64 != "true" {
		return e.Value
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(e.Value))
	if err != nil {
		return e.Value
	}
	return string(raw)
}

// severityMap is the external→internal severity mapping, keyed lower-case
// for case-insensitive matching.
var severityMap = map[string]severity.Severity{
	"high":           severity.Critical,
	"medium":         severity.High,
	"low":            severity.Medium,
	"information":    severity.Low,
	"false positive": severity.Low,
}

// Parse reads a Burp Suite XML export from r, enforcing maxBytes (0 selects
// DefaultMaxFileBytes). Issues missing a name are skipped with a logged
// warning rather than failing the whole parse. Targets lists every distinct
// host in the export in first-seen order, including hosts of skipped issues.
func Parse(r io.Reader, sourcePath string, maxBytes int64, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	limited := io.LimitReader(r, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("burp: read: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxBytes)
	}
	if bytes.Contains(bytes.ToUpper(raw), []byte("<!DOCTYPE")) {
		return nil, ErrDoctype
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true
	dec.Entity = map[string]string{}

	var doc issuesXML
	if err := dec.Decode(&doc); err != nil {
		if strings.Contains(err.Error(), "expected element type") {
			return nil, fmt.Errorf("%w: root element is not <issues>", ErrNotABurpExport)
		}
		if strings.Contains(err.Error(), "CharsetReader") {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}
	if doc.XMLName.Local != "issues" {
		return nil, ErrNotABurpExport
	}

	result := &Result{ScanInfo: doc.ScanInfo, SourcePath: sourcePath}
	seenTargets := make(map[string]struct{})

	for i, issue := range doc.IssueList {
		if issue.Host != "" {
			if _, ok := seenTargets[issue.Host]; !ok {
				seenTargets[issue.Host] = struct{}{}
				result.Targets = append(result.Targets, issue.Host)
			}
		}
		if strings.TrimSpace(issue.Name) == "" {
			logger.Warn("skipping burp issue with empty name", "index", i, "host", issue.Host)
			continue
		}
		sev, falsePositive := mapSeverity(issue.Severity)
		f := Finding{
			Type:                  issue.Type,
			Name:                  issue.Name,
			Host:                  issue.Host,
			Path:                  issue.Path,
			Location:              issue.Location,
			Severity:              sev,
			FalsePositive:         falsePositive,
			Confidence:            issue.Confidence,
			IssueBackground:       issue.IssueBackground,
			RemediationBackground: issue.RemediationBackground,
			IssueDetail:           issue.IssueDetail,
			RemediationDetail:     issue.RemediationDetail,
		}
		if issue.RequestResponse != nil {
			f.Request = truncate(issue.RequestResponse.Request.decode(), maxRequestResponsePreview)
			f.Response = truncate(issue.RequestResponse.Response.decode(), maxRequestResponsePreview)
		}
		result.Findings = append(result.Findings, f)
	}

	return result, nil
}

func mapSeverity(raw string) (severity.Severity, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if sev, ok := severityMap[key]; ok {
		return sev, key == "false positive"
	}
	return severity.Low, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
