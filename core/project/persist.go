package project

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pentestassist/pentestassist/core/severity"
	"github.com/pentestassist/pentestassist/core/vuln"
)

const timeLayout = time.RFC3339Nano

// PersistAll writes every managed project to path as a single text file,
// using a temp-file-plus-rename swap so a crash mid-write never leaves a
// truncated file in path's place.
func (m *Manager) PersistAll(path string) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		writeProjectBlock(&sb, m.byName[name])
	}
	m.mu.RUnlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".project-data-*.tmp")
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("persist: rename temp file: %w", err)
	}
	return nil
}

func writeProjectBlock(sb *strings.Builder, p *Project) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	fmt.Fprintf(sb, "== PROJECT %s ==\n", p.name)
	fmt.Fprintf(sb, "desc: %s\n", escapeNewlines(p.description))
	fmt.Fprintf(sb, "targets: %s\n", strings.Join(p.targets, ","))

	metaKeys := make([]string, 0, len(p.metadata))
	for k := range p.metadata {
		metaKeys = append(metaKeys, k)
	}
	sort.Strings(metaKeys)
	for _, k := range metaKeys {
		fmt.Fprintf(sb, "meta.%s=%v\n", k, p.metadata[k])
	}

	sb.WriteString("---\n")
	for _, v := range p.tree.Snapshot() {
		writeVulnLine(sb, v)
	}
	fmt.Fprintf(sb, "== END %s ==\n", p.name)
}

func writeVulnLine(sb *strings.Builder, v *vuln.Vulnerability) {
	cve, _ := v.CveID()
	tags := v.Tags()
	sort.Strings(tags)
	fields := []string{
		v.ID(),
		cve.String(),
		v.Name(),
		string(v.Severity()),
		v.Target(),
		v.Location(),
		string(v.Status()),
		v.DiscoveredAt().Format(timeLayout),
		v.UpdatedAt().Format(timeLayout),
		strings.Join(tags, ";"),
	}
	sb.WriteString(strings.Join(fields, "|"))
	sb.WriteByte('\n')
}

func escapeNewlines(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func unescapeNewlines(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// LoadAll reads a project data file written by PersistAll and replaces the
// manager's entire project set with what it contains. Malformed
// vulnerability lines are skipped and logged rather than aborting the load;
// unknown meta.* keys are retained as opaque strings.
func (m *Manager) LoadAll(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load: open: %w", err)
	}
	defer f.Close()

	loaded := make(map[string]*Project)
	var current *Project

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	inBody := false

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "== PROJECT "):
			name := strings.TrimSuffix(strings.TrimPrefix(line, "== PROJECT "), " ==")
			now := m.now()
			current = newProject(name, "", now)
			loaded[name] = current
			inBody = false
		case strings.HasPrefix(line, "== END "):
			current = nil
			inBody = false
		case current == nil:
			continue
		case line == "---":
			inBody = true
		case !inBody && strings.HasPrefix(line, "desc: "):
			current.description = unescapeNewlines(strings.TrimPrefix(line, "desc: "))
		case !inBody && strings.HasPrefix(line, "targets: "):
			raw := strings.TrimPrefix(line, "targets: ")
			if raw != "" {
				for _, t := range strings.Split(raw, ",") {
					current.targetSet[t] = struct{}{}
					current.targets = append(current.targets, t)
				}
			}
		case !inBody && strings.HasPrefix(line, "meta."):
			rest := strings.TrimPrefix(line, "meta.")
			k, v, ok := strings.Cut(rest, "=")
			if ok {
				current.metadata[k] = v
			}
		case inBody && line != "":
			v, err := parseVulnLine(line)
			if err != nil {
				logger.Warn("skipping malformed vulnerability line", "project", current.name, "error", err)
				continue
			}
			if err := current.tree.Add(v); err != nil {
				logger.Warn("skipping duplicate vulnerability id on load", "project", current.name, "id", v.ID())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("load: scan: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName = loaded
	if _, ok := loaded[m.current]; !ok {
		m.current = ""
	}
	return nil
}

func parseVulnLine(line string) (*vuln.Vulnerability, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 10 {
		return nil, fmt.Errorf("expected 10 fields, got %d", len(fields))
	}
	id, cveStr, name, sevStr, target, location, statusStr, discoveredStr, updatedStr, tagsStr := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6], fields[7], fields[8], fields[9]

	discovered, err := time.Parse(timeLayout, discoveredStr)
	if err != nil {
		return nil, fmt.Errorf("discovered_at: %w", err)
	}
	updated, err := time.Parse(timeLayout, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}

	snap := vuln.Snapshot{
		ID:           id,
		Name:         name,
		Severity:     severity.Severity(sevStr),
		Target:       target,
		Location:     location,
		CveID:        cveStr,
		Status:       vuln.Status(statusStr),
		DiscoveredAt: discovered,
		UpdatedAt:    updated,
		Source:       vuln.SourceImported,
	}
	if tagsStr != "" {
		snap.Tags = strings.Split(tagsStr, ";")
	}
	if !snap.Severity.Valid() {
		return nil, fmt.Errorf("invalid severity %q", sevStr)
	}
	if id == "" || name == "" || target == "" {
		return nil, fmt.Errorf("missing required field")
	}
	return vuln.FromSnapshot(snap), nil
}
