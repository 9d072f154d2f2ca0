package gather

import (
	"sync"
	"time"

	"github.com/pentestassist/pentestassist/gather/fileanalyzer"
	"github.com/pentestassist/pentestassist/ingest/burp"
)

// State is a GatherSession's lifecycle stage.
type State string

// Session lifecycle states.
const (
	StateCreated State = "CREATED"
	StateActive  State = "ACTIVE"
	StateClosed  State = "CLOSED"
)

// Session is a bounded context accumulating file-analysis and Burp-import
// results. Every read and mutation is guarded by one internal mutex, so
// reads are serialized with writes and with each other.
type Session struct {
	mu sync.Mutex

	id          string
	projectName string
	scope       ScopePolicy
	state       State
	createdAt   time.Time

	filesAnalyzed int
	findings      []*fileanalyzer.ExtractedData
	burpImports   []*burp.Result
}

func newSession(id, projectName string, scope ScopePolicy, now time.Time) *Session {
	return &Session{
		id:          id,
		projectName: projectName,
		scope:       scope,
		state:       StateActive,
		createdAt:   now,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// ProjectName returns the project this session feeds, or "" if none.
func (s *Session) ProjectName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectName
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scope returns the session's ScopePolicy.
func (s *Session) Scope() ScopePolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// FilesAnalyzed returns the running count of files analyzed in this session.
func (s *Session) FilesAnalyzed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filesAnalyzed
}

// Findings returns a snapshot slice of accumulated ExtractedData.
func (s *Session) Findings() []*fileanalyzer.ExtractedData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fileanalyzer.ExtractedData, len(s.findings))
	copy(out, s.findings)
	return out
}

// BurpImports returns a snapshot slice of accumulated Burp parse results.
func (s *Session) BurpImports() []*burp.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*burp.Result, len(s.burpImports))
	copy(out, s.burpImports)
	return out
}

func (s *Session) addFinding(d *fileanalyzer.ExtractedData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesAnalyzed++
	s.findings = append(s.findings, d)
}

func (s *Session) addBurpResult(r *burp.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.burpImports = append(s.burpImports, r)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

func (s *Session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}
