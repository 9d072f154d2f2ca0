// Package fileanalyzer classifies files and extracts typed data items from
// their content using a fixed, ordered rule table: a table of (pattern,
// kind, confidence) tuples applied with a plain regex scan instead of a
// rule engine with its own DSL.
package fileanalyzer

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// FileType classifies a file by extension and well-known basename.
type FileType string

// Recognized file types.
const (
	TypeConfig FileType = "CONFIG"
	TypeSource FileType = "SOURCE"
	TypeWeb    FileType = "WEB"
	TypeDB     FileType = "DB"
	TypeDeploy FileType = "DEPLOY"
	TypeLog    FileType = "LOG"
	TypeDoc    FileType = "DOC"
	TypeBackup FileType = "BACKUP"
	TypeCert   FileType = "CERT"
	TypeOther  FileType = "OTHER"
)

var extTypes = map[string]FileType{
	".conf": TypeConfig, ".cfg": TypeConfig, ".ini": TypeConfig, ".env": TypeConfig,
	".yaml": TypeConfig, ".yml": TypeConfig, ".toml": TypeConfig, ".json": TypeConfig,
	".go": TypeSource, ".py": TypeSource, ".js": TypeSource, ".ts": TypeSource,
	".java": TypeSource, ".rb": TypeSource, ".php": TypeSource, ".c": TypeSource, ".cpp": TypeSource,
	".html": TypeWeb, ".htm": TypeWeb, ".jsp": TypeWeb, ".asp": TypeWeb, ".aspx": TypeWeb,
	".sql": TypeDB, ".db": TypeDB, ".sqlite": TypeDB, ".sqlite3": TypeDB,
	".tf": TypeDeploy, ".dockerfile": TypeDeploy,
	".log": TypeLog,
	".md":  TypeDoc, ".txt": TypeDoc, ".rst": TypeDoc,
	".bak": TypeBackup, ".old": TypeBackup, ".orig": TypeBackup,
	".pem": TypeCert, ".crt": TypeCert, ".key": TypeCert, ".p12": TypeCert, ".pfx": TypeCert,
}

var baseTypes = map[string]FileType{
	"dockerfile":         TypeDeploy,
	"docker-compose.yml": TypeDeploy,
	"docker-compose.yaml": TypeDeploy,
	".htpasswd":          TypeConfig,
	"web.config":         TypeConfig,
}

// Classify determines the FileType for path by extension, falling back to
// well-known basenames, then OTHER.
func Classify(path string) FileType {
	base := strings.ToLower(filepath.Base(path))
	if t, ok := baseTypes[base]; ok {
		return t
	}
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	return TypeOther
}

// Kind identifies the category of a DataItem.
type Kind string

// Recognized data item kinds.
const (
	KindCredential Kind = "CREDENTIAL"
	KindAPIKey     Kind = "API_KEY"
	KindDBConn     Kind = "DB_CONN"
	KindEndpoint   Kind = "ENDPOINT"
	KindConfigKV   Kind = "CONFIG_KV"
	KindVersion    Kind = "VERSION"
	KindVulnHint   Kind = "VULN_HINT"
	KindUserInfo   Kind = "USER_INFO"
	KindFilePath   Kind = "FILE_PATH"
	KindNetwork    Kind = "NETWORK"
	KindCVERef     Kind = "CVE_REF"
)

const redactedPlaceholder = "[REDACTED]"

// DataItem is a single extracted fact from a file, carrying both a
// display-safe form and (when the scope policy permits) the raw value.
type DataItem struct {
	Kind       Kind
	Display    string
	Raw        string
	Confidence float64
	Line       int
	SourcePath string
}

// ExtractedData is the complete set of items pulled from one file.
// Sensitive is set when any item of a redacted kind (credential, API key,
// database connection string) was found.
type ExtractedData struct {
	Path      string
	FileType  FileType
	Items     []DataItem
	Warnings  []string
	Sensitive bool
}

type rule struct {
	kind       Kind
	pattern    *regexp.Regexp
	confidence float64
	redact     bool
}

// extractionRules is the fixed, ordered list of pattern rules applied to
// every scanned line. Order matters only for determinism of
// output, not for correctness: rules are independent and all are applied.
var extractionRules = []rule{
	{KindCredential, regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret)\s*[:=]\s*["']?([^"'\s]{3,})["']?`), 0.7, true},
	{KindAPIKey, regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|access[_-]?token)\s*[:=]\s*["']?([A-Za-z0-9_\-./+]{12,})["']?`), 0.8, true},
	{KindAPIKey, regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9_\-.~+/]{16,}=*)`), 0.8, true},
	{KindAPIKey, regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |ENCRYPTED )?PRIVATE KEY-----`), 0.95, true},
	{KindDBConn, regexp.MustCompile(`(?i)\b(?:jdbc:\w+|mysql|postgres(?:ql)?|mongodb(?:\+srv)?|redis)://[^\s"']+`), 0.9, true},
	{KindEndpoint, regexp.MustCompile(`https?://[^\s"'<>]+`), 0.6, false},
	{KindVersion, regexp.MustCompile(`(?i)\bversion\s*[:=]\s*["']?v?(\d+\.\d+(?:\.\d+)?)["']?`), 0.5, false},
	{KindVersion, regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9_-]*/(\d+\.\d+(?:\.\d+)?)\b`), 0.4, false},
	{KindVulnHint, regexp.MustCompile(`(?i)\b(sql injection|xss|cross-site scripting|rce|remote code execution|buffer overflow|path traversal|deserialization|ssrf)\b`), 0.5, false},
	{KindUserInfo, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), 0.6, false},
	{KindNetwork, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0.5, false},
	{KindNetwork, regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){2,7}[0-9A-Fa-f]{1,4}\b`), 0.4, false},
	{KindNetwork, regexp.MustCompile(`\b[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)+\.(?:com|net|org|io|internal|local|corp)\b`), 0.4, false},
	{KindFilePath, regexp.MustCompile(`(?:^|\s)(/(?:[\w.-]+/)+[\w.-]+)`), 0.4, false},
	{KindFilePath, regexp.MustCompile(`\b[A-Za-z]:\\(?:[\w.-]+\\)*[\w.-]+`), 0.4, false},
	{KindConfigKV, regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s*=\s*(.+)$`), 0.3, false},
}

var cveLineRef = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)

// cache is a small LRU keyed by (path, size, mtime) so re-scanning an
// unchanged file during a long gathering session is free.
type cacheKey struct {
	path  string
	size  int64
	mtime int64
}

type cacheEntry struct {
	key  cacheKey
	data *ExtractedData
}

// Cache is a size-bounded LRU cache of ExtractedData keyed on file identity.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    []cacheKey
	entries  map[cacheKey]*cacheEntry
}

// NewCache returns a Cache holding up to capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{capacity: capacity, entries: make(map[cacheKey]*cacheEntry)}
}

func (c *Cache) get(path string, size int64, mtime time.Time) (*ExtractedData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{path, size, mtime.UnixNano()}
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(key)
	return e.data, true
}

func (c *Cache) put(path string, size int64, mtime time.Time, data *ExtractedData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{path, size, mtime.UnixNano()}
	if _, exists := c.entries[key]; !exists && len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = &cacheEntry{key: key, data: data}
	c.touch(key)
}

func (c *Cache) touch(key cacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

// Analyzer extracts DataItems from file content, honoring the scope
// policy's allow-raw-retention decision via allowRaw and caching by file
// identity.
type Analyzer struct {
	cache *Cache
}

// NewAnalyzer returns an Analyzer with its own extraction cache.
func NewAnalyzer(cacheCapacity int) *Analyzer {
	return &Analyzer{cache: NewCache(cacheCapacity)}
}

// AnalyzeContent scans content line by line, applying every extraction rule.
// allowRaw controls whether DataItem.Raw is populated for redacted items,
// including items of a non-redacting kind whose match overlaps a value a
// redacting rule captured on the same line. Raw is always populated for
// plain items since there's nothing to protect.
func (a *Analyzer) AnalyzeContent(path string, content []byte, allowRaw bool) *ExtractedData {
	data := &ExtractedData{Path: path, FileType: Classify(path)}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Redacting rules run first and record the values they captured,
		// so a broader non-redacting rule (the config key/value catch-all
		// in particular) matching the same span on the same line cannot
		// re-emit a redacted secret in cleartext.
		var redactedVals []string
		for _, r := range extractionRules {
			if !r.redact {
				continue
			}
			for _, m := range r.pattern.FindAllStringSubmatch(line, -1) {
				raw := m[0]
				if len(m) > 1 {
					raw = m[len(m)-1]
				}
				data.Sensitive = true
				redactedVals = append(redactedVals, raw)
				item := DataItem{
					Kind:       r.kind,
					Display:    redactedPlaceholder,
					Confidence: r.confidence,
					Line:       lineNum,
					SourcePath: path,
				}
				if allowRaw {
					item.Raw = raw
				}
				data.Items = append(data.Items, item)
			}
		}
		for _, r := range extractionRules {
			if r.redact {
				continue
			}
			for _, m := range r.pattern.FindAllStringSubmatch(line, -1) {
				raw := m[0]
				if len(m) > 1 {
					raw = m[len(m)-1]
				}
				item := DataItem{
					Kind:       r.kind,
					Confidence: r.confidence,
					Line:       lineNum,
					SourcePath: path,
				}
				if overlapsRedacted(redactedVals, raw) {
					item.Display = redactedPlaceholder
					if allowRaw {
						item.Raw = raw
					}
				} else {
					item.Display = raw
					item.Raw = raw
				}
				data.Items = append(data.Items, item)
			}
		}
		for _, cve := range cveLineRef.FindAllString(line, -1) {
			data.Items = append(data.Items, DataItem{
				Kind:       KindCVERef,
				Display:    strings.ToUpper(cve),
				Raw:        strings.ToUpper(cve),
				Confidence: 0.95,
				Line:       lineNum,
				SourcePath: path,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		data.Warnings = append(data.Warnings, err.Error())
	}
	return data
}

// overlapsRedacted reports whether raw contains, or is contained in, a
// value a redacting rule captured on the same line.
func overlapsRedacted(redactedVals []string, raw string) bool {
	for _, v := range redactedVals {
		if strings.Contains(raw, v) || strings.Contains(v, raw) {
			return true
		}
	}
	return false
}

// AnalyzeFileCached wraps AnalyzeContent with the LRU cache keyed by
// (path, size, mtime).
func (a *Analyzer) AnalyzeFileCached(path string, content []byte, size int64, mtime time.Time, allowRaw bool) *ExtractedData {
	if cached, ok := a.cache.get(path, size, mtime); ok {
		return cached
	}
	data := a.AnalyzeContent(path, content, allowRaw)
	a.cache.put(path, size, mtime, data)
	return data
}
