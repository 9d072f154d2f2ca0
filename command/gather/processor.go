// Package gather implements InformationGatheringCommandProcessor: the natural-language grammar over gather.Gatherer, mirroring the
// ordered-regex dispatch shape of command/project's ProjectCommandProcessor.
package gather

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pentestassist/pentestassist/gather"
	"github.com/pentestassist/pentestassist/gather/fileanalyzer"
	"github.com/pentestassist/pentestassist/ingest/burp"
)

// Processor implements the information-gathering command grammar over a
// *gather.Gatherer.
type Processor struct {
	g            *gather.Gatherer
	defaultScope gather.ScopePolicy
	current      string
	patterns     []pattern
}

type pattern struct {
	re      *regexp.Regexp
	handler func(p *Processor, m []string) string
}

// New returns a Processor dispatching natural-language gathering commands
// to g. defaultScope is applied to sessions started implicitly by
// "analyze file"/"analyze directory" commands that have no prior
// `gather info on` call establishing one.
func New(g *gather.Gatherer, defaultScope gather.ScopePolicy) *Processor {
	p := &Processor{g: g, defaultScope: defaultScope}
	p.patterns = []pattern{
		{regexp.MustCompile(`(?i)^gather info on "([^"]+)"$`), (*Processor).handleGatherInfo},
		{regexp.MustCompile(`(?i)^analyze file "([^"]+)"(?: in session (\S+))?$`), (*Processor).handleAnalyzeFile},
		{regexp.MustCompile(`(?i)^analyze directory "([^"]+)"(?: recursive)?(?: in session (\S+))?$`), (*Processor).handleAnalyzeDirectory},
		{regexp.MustCompile(`(?i)^import burp data from "([^"]+)"(?: into project "([^"]+)")?(?: in session (\S+))?$`), (*Processor).handleImportBurp},
		{regexp.MustCompile(`(?i)^(?:list|show) gathering session (\S+)$`), (*Processor).handleShowSession},
		{regexp.MustCompile(`(?i)^close gathering session (\S+)$`), (*Processor).handleCloseSession},
		{regexp.MustCompile(`(?i)^list passwords(?: in session (\S+)| in project "([^"]+)")?$`), (*Processor).handleListPasswords},
		{regexp.MustCompile(`(?i)^list api keys(?: in session (\S+)| in project "([^"]+)")?$`), (*Processor).handleListAPIKeys},
		{regexp.MustCompile(`(?i)^list endpoints(?: in session (\S+)| in project "([^"]+)")?$`), (*Processor).handleListEndpoints},
		{regexp.MustCompile(`(?i)^list burp vulnerabilities(?: in session (\S+)| in project "([^"]+)")?$`), (*Processor).handleListBurpVulnerabilities},
	}
	return p
}

// Matches reports whether line is recognized by this processor's grammar.
func (p *Processor) Matches(line string) bool {
	line = strings.TrimSpace(line)
	for _, pat := range p.patterns {
		if pat.re.MatchString(line) {
			return true
		}
	}
	return false
}

// Process dispatches line to the first matching handler. Callers must check
// Matches first.
func (p *Processor) Process(line string) string {
	line = strings.TrimSpace(line)
	for _, pat := range p.patterns {
		if m := pat.re.FindStringSubmatch(line); m != nil {
			return pat.handler(p, m)
		}
	}
	return "[ERROR] unrecognized gathering command"
}

// resolveSession returns explicit if given, otherwise the processor's most
// recently started session, lazily starting one against defaultScope if
// none exists yet, the same implicit-current-context convention
// ProjectCommandProcessor uses for "current project".
func (p *Processor) resolveSession(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p.current == "" {
		id, err := p.g.Start("", p.defaultScope)
		if err != nil {
			return "", err
		}
		p.current = id
	}
	return p.current, nil
}

// boundSession returns explicit if it already names a session bound to
// projectName; otherwise it starts a new session bound to projectName and
// makes it current.
func (p *Processor) boundSession(explicit, projectName string) (string, error) {
	if explicit != "" {
		sess, err := p.g.Get(explicit)
		if err != nil {
			return "", err
		}
		if sess.ProjectName() == projectName {
			return explicit, nil
		}
	}
	id, err := p.g.Start(projectName, p.defaultScope)
	if err != nil {
		return "", err
	}
	p.current = id
	return id, nil
}

func (p *Processor) handleGatherInfo(m []string) string {
	id, err := p.g.Start(m[1], p.defaultScope)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	p.current = id
	return fmt.Sprintf("gathering session %s started for project %q", id, m[1])
}

func (p *Processor) handleAnalyzeFile(m []string) string {
	sid, err := p.resolveSession(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	data, err := p.g.AnalyzeFile(context.Background(), sid, m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("analyzed %s: %d items extracted, type=%s", m[1], len(data.Items), data.FileType)
}

func (p *Processor) handleAnalyzeDirectory(m []string) string {
	sid, err := p.resolveSession(m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	n, err := p.g.AnalyzeDirectory(context.Background(), sid, m[1], true)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("analyzed %d files under %s", n, m[1])
}

func (p *Processor) handleImportBurp(m []string) string {
	var sid string
	var err error
	if m[2] != "" {
		// An explicit target project needs a session bound to it, so the
		// parsed findings actually land in that project's tree.
		sid, err = p.boundSession(m[3], m[2])
	} else {
		sid, err = p.resolveSession(m[3])
	}
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	result, err := p.g.ImportBurp(context.Background(), sid, m[1], 0)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	suffix := ""
	if m[2] != "" {
		suffix = fmt.Sprintf(" into project %q", m[2])
	}
	return fmt.Sprintf("imported %d findings from %s%s", len(result.Findings), m[1], suffix)
}

func (p *Processor) handleShowSession(m []string) string {
	sess, err := p.g.Get(m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("session %s: state=%s files_analyzed=%d burp_imports=%d",
		sess.ID(), sess.State(), sess.FilesAnalyzed(), len(sess.BurpImports()))
}

func (p *Processor) handleCloseSession(m []string) string {
	if err := p.g.Close(m[1]); err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	return fmt.Sprintf("session %s closed", m[1])
}

// listSessions resolves the session set a list command addresses: an
// explicit session id, every session bound to an explicit project, or the
// processor's implicit current session.
func (p *Processor) listSessions(sessionArg, projectArg string) ([]string, error) {
	if projectArg != "" {
		sessions := p.g.SessionsFor(projectArg)
		if len(sessions) == 0 {
			return nil, fmt.Errorf("no gathering sessions for project %q", projectArg)
		}
		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID()
		}
		return ids, nil
	}
	sid, err := p.resolveSession(sessionArg)
	if err != nil {
		return nil, err
	}
	return []string{sid}, nil
}

func (p *Processor) listKind(sessionArg, projectArg string, kind fileanalyzer.Kind, label string) string {
	sids, err := p.listSessions(sessionArg, projectArg)
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	var items []fileanalyzer.DataItem
	for _, sid := range sids {
		found, err := p.g.Query(sid, gather.QueryFilter{Kind: kind})
		if err != nil {
			return fmt.Sprintf("[ERROR] %v", err)
		}
		items = append(items, found...)
	}
	if len(items) == 0 {
		return fmt.Sprintf("no %s found", label)
	}
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "%s: %s (confidence %.2f)\n", item.SourcePath, item.Display, item.Confidence)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Processor) handleListPasswords(m []string) string {
	return p.listKind(m[1], m[2], fileanalyzer.KindCredential, "passwords")
}

func (p *Processor) handleListAPIKeys(m []string) string {
	return p.listKind(m[1], m[2], fileanalyzer.KindAPIKey, "api keys")
}

func (p *Processor) handleListEndpoints(m []string) string {
	return p.listKind(m[1], m[2], fileanalyzer.KindEndpoint, "endpoints")
}

func (p *Processor) handleListBurpVulnerabilities(m []string) string {
	sids, err := p.listSessions(m[1], m[2])
	if err != nil {
		return fmt.Sprintf("[ERROR] %v", err)
	}
	var imports []*burp.Result
	for _, sid := range sids {
		sess, err := p.g.Get(sid)
		if err != nil {
			return fmt.Sprintf("[ERROR] %v", err)
		}
		imports = append(imports, sess.BurpImports()...)
	}
	if len(imports) == 0 {
		return "no burp vulnerabilities found"
	}
	var sb strings.Builder
	for _, result := range imports {
		for _, f := range result.Findings {
			fmt.Fprintf(&sb, "%s [%s] %s\n", f.Name, f.Severity, f.Host)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
