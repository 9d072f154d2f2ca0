package gather

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pentestassist/pentestassist/core/project"
	"github.com/pentestassist/pentestassist/core/vuln"
	"github.com/pentestassist/pentestassist/gather/fileanalyzer"
	"github.com/pentestassist/pentestassist/ingest/burp"
)

// Errors returned by Gatherer operations.
var (
	ErrSessionNotFound = errors.New("gathering session not found")
	ErrSessionClosed   = errors.New("gathering session is not active")
	ErrOutOfScope      = errors.New("path is out of scope")
	ErrPathEscape      = errors.New("path escapes the scan root")
	ErrFileTooLarge    = errors.New("file exceeds max_file_bytes")
	ErrCancelled       = errors.New("operation cancelled")
)

// Gatherer is InformationGatherer: a session manager that
// coordinates file/directory scans and Burp imports, bounded by each
// session's ScopePolicy, and inserts resulting Vulnerabilities into a
// Project via the ProjectManager when a session is project-bound.
type Gatherer struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // session ids in creation order

	projects *project.Manager
	analyzer *fileanalyzer.Analyzer
	pool     *pool
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithLogger sets the structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(g *Gatherer) { g.logger = l }
}

// WithWorkerCount overrides the file-analysis pool size (default
// runtime.NumCPU()).
func WithWorkerCount(n int) Option {
	return func(g *Gatherer) { g.pool = newPool(n) }
}

// WithClock supplies a deterministic time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Gatherer) { g.now = clock }
}

// New returns a Gatherer that inserts imported findings into projects
// through pm.
func New(pm *project.Manager, opts ...Option) *Gatherer {
	g := &Gatherer{
		sessions: make(map[string]*Session),
		projects: pm,
		analyzer: fileanalyzer.NewAnalyzer(0),
		pool:     newPool(0),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Start creates a new ACTIVE session scoped by policy, optionally bound to
// projectName. An empty projectName leaves the session unbound:
// analyze/import still accumulate findings but never write to a Project.
func (g *Gatherer) Start(projectName string, scope ScopePolicy) (string, error) {
	id := uuid.NewString()
	sess := newSession(id, projectName, scope, g.now())
	g.mu.Lock()
	g.sessions[id] = sess
	g.order = append(g.order, id)
	g.mu.Unlock()
	g.logger.Info("gathering session started", "session", id, "project", projectName)
	return id, nil
}

// Get returns the session with the given id.
func (g *Gatherer) Get(sessionID string) (*Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// SessionsFor returns every session bound to projectName, in creation
// order. Closed sessions are included, since they remain queryable.
func (g *Gatherer) SessionsFor(projectName string) []*Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Session
	for _, id := range g.order {
		if s := g.sessions[id]; s != nil && s.ProjectName() == projectName {
			out = append(out, s)
		}
	}
	return out
}

// Close transitions a session to CLOSED. A closed session remains
// queryable but rejects further analyze/import calls.
func (g *Gatherer) Close(sessionID string) error {
	s, err := g.Get(sessionID)
	if err != nil {
		return err
	}
	s.close()
	g.logger.Info("gathering session closed", "session", sessionID)
	return nil
}

func (g *Gatherer) activeSession(sessionID string) (*Session, error) {
	s, err := g.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.isActive() {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	return s, nil
}

// AnalyzeFile validates path against the session's ScopePolicy, dispatches
// to FileAnalyzer, and accumulates the result. Scope-rejected paths never
// produce a DataItem.
func (g *Gatherer) AnalyzeFile(ctx context.Context, sessionID, path string) (*fileanalyzer.ExtractedData, error) {
	s, err := g.activeSession(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := g.analyzePath(ctx, s, path)
	if err != nil {
		return nil, err
	}
	s.addFinding(data)
	return data, nil
}

// analyzePath runs the scope checks and file analysis without touching the
// session accumulator, so callers that batch files (AnalyzeDirectory) can
// discard everything on cancellation instead of committing partial results.
func (g *Gatherer) analyzePath(ctx context.Context, s *Session, path string) (*fileanalyzer.ExtractedData, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	scope := s.Scope()
	clean := filepath.Clean(path)
	if !scope.InScope(clean) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfScope, path)
	}

	info, err := os.Lstat(clean)
	if err != nil {
		return nil, fmt.Errorf("gather: stat %s: %w", clean, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if !scope.FollowSymlinks {
			return nil, fmt.Errorf("%w: symlink not followed: %s", ErrOutOfScope, path)
		}
		// A followed symlink must still resolve inside the scope root;
		// anything else is an escape attempt.
		canon, err := filepath.EvalSymlinks(clean)
		if err != nil {
			return nil, fmt.Errorf("gather: resolve %s: %w", clean, err)
		}
		if !scope.InScope(canon) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrPathEscape, path, canon)
		}
		info, err = os.Stat(canon)
		if err != nil {
			return nil, fmt.Errorf("gather: stat %s: %w", canon, err)
		}
	}
	if info.Size() > scope.MaxFileBytes {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, path, info.Size())
	}

	content, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("gather: read %s: %w", clean, err)
	}

	return g.analyzer.AnalyzeFileCached(clean, content, info.Size(), info.ModTime(), scope.RetainRawValues), nil
}

// AnalyzeDirectory walks root depth-first by recursion, applying the session's scope
// filter per entry, detecting symlink cycles via a canonical-path set, and
// analyzing every in-scope file with a bounded worker pool. It fails fast
// (without mutating the accumulator further) on a path-escape attempt
// outside the scope root.
func (g *Gatherer) AnalyzeDirectory(ctx context.Context, sessionID, root string, recursive bool) (int, error) {
	s, err := g.activeSession(sessionID)
	if err != nil {
		return 0, err
	}
	scope := s.Scope()
	cleanRoot := filepath.Clean(root)
	if !scope.InScope(cleanRoot) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfScope, root)
	}

	var paths []string
	visited := make(map[string]struct{})
	var walk func(dir string) error
	walk = func(dir string) error {
		canon, err := filepath.EvalSymlinks(dir)
		if err != nil {
			canon = dir
		}
		if _, seen := visited[canon]; seen {
			return nil
		}
		visited[canon] = struct{}{}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("gather: read dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if !scope.InScope(full) {
				continue
			}
			if entry.IsDir() {
				if recursive {
					if err := walk(full); err != nil {
						return err
					}
				}
				continue
			}
			if entry.Type()&fs.ModeSymlink != 0 && !scope.FollowSymlinks {
				continue
			}
			paths = append(paths, full)
		}
		return nil
	}
	if err := walk(cleanRoot); err != nil {
		return 0, err
	}

	// Results are staged locally and committed to the session only after
	// the whole scan completes, so a cancelled scan applies nothing.
	staged := make([]*fileanalyzer.ExtractedData, len(paths))
	err = g.pool.run(ctx, len(paths), func(ctx context.Context, i int) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := g.analyzePath(ctx, s, paths[i])
		if err != nil {
			if errors.Is(err, ErrCancelled) || errors.Is(err, ErrPathEscape) {
				return err
			}
			g.logger.Warn("skipping file during directory scan", "path", paths[i], "error", err)
			return nil
		}
		staged[i] = data
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
			return 0, ErrCancelled
		}
		return 0, err
	}

	analyzed := 0
	for _, data := range staged {
		if data == nil {
			continue
		}
		s.addFinding(data)
		analyzed++
	}
	return analyzed, nil
}

// ImportBurp parses a Burp export at path and, for each finding, constructs
// a Vulnerability via the CVE naming convention. If the session is bound to
// a project, each vulnerability is inserted through the ProjectManager.
func (g *Gatherer) ImportBurp(ctx context.Context, sessionID, path string, maxBytes int64) (*burp.Result, error) {
	s, err := g.activeSession(sessionID)
	if err != nil {
		return nil, err
	}
	scope := s.Scope()
	clean := filepath.Clean(path)
	if !scope.InScope(clean) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfScope, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("gather: open %s: %w", clean, err)
	}
	defer f.Close()

	result, err := burp.Parse(f, clean, maxBytes, g.logger)
	if err != nil {
		return nil, err
	}

	projectName := s.ProjectName()
	if projectName != "" {
		// Construct every vulnerability before applying any, so a
		// cancellation observed mid-import discards the whole batch
		// instead of leaving the project half-updated.
		vulns := make([]*vuln.Vulnerability, 0, len(result.Findings))
		for i, finding := range result.Findings {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			target := finding.Host
			if target == "" {
				target = "unknown"
			}
			location := finding.Path
			if location == "" {
				location = finding.Location
			}
			background := finding.IssueBackground + "\n" + finding.IssueDetail
			id := fmt.Sprintf("burp-%s-%d-%d", sessionID, g.now().UnixNano(), i)
			v, err := vuln.FromBurpFinding(id, finding.Name, background, finding.Severity, target, location, g.now())
			if err != nil {
				g.logger.Warn("skipping burp finding", "error", err, "name", finding.Name)
				continue
			}
			if finding.FalsePositive {
				v.AddTag("false_positive", g.now())
				v.SetStatus(vuln.StatusFalsePositive, g.now())
			}
			vulns = append(vulns, v)
		}
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		for _, v := range vulns {
			if err := g.projects.AddVulnerability(projectName, v); err != nil {
				g.logger.Warn("failed to insert burp finding", "error", err, "project", projectName)
			}
		}
	}

	s.addBurpResult(result)
	return result, nil
}

// QueryFilter selects a subset of a session's accumulated DataItems.
type QueryFilter struct {
	Kind   fileanalyzer.Kind
	Target string
	Regex  string
}

// Query returns DataItems across all of a session's findings matching
// filter. An empty filter field is not applied.
func (g *Gatherer) Query(sessionID string, filter QueryFilter) ([]fileanalyzer.DataItem, error) {
	s, err := g.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var re *regexp.Regexp
	if filter.Regex != "" {
		re, err = regexp.Compile(filter.Regex)
		if err != nil {
			return nil, fmt.Errorf("gather: invalid query regex: %w", err)
		}
	}
	var out []fileanalyzer.DataItem
	for _, d := range s.Findings() {
		for _, item := range d.Items {
			if filter.Kind != "" && item.Kind != filter.Kind {
				continue
			}
			if filter.Target != "" && item.SourcePath != filter.Target {
				continue
			}
			if re != nil && !re.MatchString(item.Display) {
				continue
			}
			out = append(out, item)
		}
	}
	return out, nil
}
