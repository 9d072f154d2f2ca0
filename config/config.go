// Package config loads pentestassist's YAML configuration: a zero-value
// config on a missing file, yaml.v3 struct tags, and no error for an absent
// file. Keys listed in applyEnvOverrides may be overridden by an
// uppercased, dot-to-underscore environment variable, applied after the file
// is parsed so env always wins over file, which always wins over the
// built-in defaults baked into the zero values below. The model, api_key and
// base_url keys of the embedding and llm sections have no environment
// override.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree recognized by the core.
type Config struct {
	VectorDB  VectorDBSettings  `yaml:"vectordb"`
	Ghidra    AnalyzerSettings  `yaml:"ghidra"`
	Project   ProjectSettings   `yaml:"project"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	LLM       LLMSettings       `yaml:"llm"`
	Scope     ScopeSettings     `yaml:"scope"`
}

// VectorDBSettings configures the vector database collaborator.
type VectorDBSettings struct {
	Endpoint string `yaml:"endpoint"`
	TopK     int    `yaml:"top_k"`
}

// AnalyzerSettings configures the headless binary-analyzer collaborator.
// The yaml keys nest under "ghidra" per the configuration table, though the
// adapter works with any headless analyzer that honors the same CLI shape.
type AnalyzerSettings struct {
	HeadlessPath string `yaml:"headless_path"`
	ProjectDir   string `yaml:"project_dir"`
	ProjectName  string `yaml:"project_name"`
	ScriptDir    string `yaml:"script_dir"`
	TimeoutMS    int    `yaml:"timeout_ms"`
}

// ProjectSettings configures project persistence.
type ProjectSettings struct {
	DataFile string `yaml:"data_file"`
}

// EmbeddingSettings selects and configures the embedding adapter.
type EmbeddingSettings struct {
	BackendType string `yaml:"backend_type"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
}

// LLMSettings configures the LLM collaborator.
type LLMSettings struct {
	PromptPrefix string `yaml:"prompt_prefix"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
}

// ScopeSettings configures the InformationGatherer's ScopePolicy.
type ScopeSettings struct {
	AllowedRoots   []string `yaml:"allowed_roots"`
	BlockedGlobs   []string `yaml:"blocked_globs"`
	MaxFileBytes   int64    `yaml:"max_file_bytes"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
}

// Load reads path and applies environment variable overrides. A missing
// file yields a zero-value Config (still subject to env overrides) rather
// than an error, since every field has a usable built-in default.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place from environment variables named
// as the uppercased dotted key with dots replaced by underscores, e.g.
// VECTORDB_ENDPOINT, GHIDRA_TIMEOUT_MS, SCOPE_ALLOWED_ROOTS (comma separated
// for list-valued keys).
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnv("VECTORDB_ENDPOINT"); ok {
		cfg.VectorDB.Endpoint = v
	}
	if v, ok := lookupIntEnv("VECTORDB_TOP_K"); ok {
		cfg.VectorDB.TopK = v
	}
	if v, ok := lookupEnv("GHIDRA_HEADLESS_PATH"); ok {
		cfg.Ghidra.HeadlessPath = v
	}
	if v, ok := lookupEnv("GHIDRA_PROJECT_DIR"); ok {
		cfg.Ghidra.ProjectDir = v
	}
	if v, ok := lookupEnv("GHIDRA_PROJECT_NAME"); ok {
		cfg.Ghidra.ProjectName = v
	}
	if v, ok := lookupEnv("GHIDRA_SCRIPT_DIR"); ok {
		cfg.Ghidra.ScriptDir = v
	}
	if v, ok := lookupIntEnv("GHIDRA_TIMEOUT_MS"); ok {
		cfg.Ghidra.TimeoutMS = v
	}
	if v, ok := lookupEnv("PROJECT_DATA_FILE"); ok {
		cfg.Project.DataFile = v
	}
	if v, ok := lookupEnv("EMBEDDING_BACKEND_TYPE"); ok {
		cfg.Embedding.BackendType = v
	}
	if v, ok := lookupEnv("LLM_PROMPT_PREFIX"); ok {
		cfg.LLM.PromptPrefix = v
	}
	if v, ok := lookupEnv("SCOPE_ALLOWED_ROOTS"); ok {
		cfg.Scope.AllowedRoots = splitCSV(v)
	}
	if v, ok := lookupEnv("SCOPE_BLOCKED_GLOBS"); ok {
		cfg.Scope.BlockedGlobs = splitCSV(v)
	}
	if v, ok := lookupIntEnv("SCOPE_MAX_FILE_BYTES"); ok {
		cfg.Scope.MaxFileBytes = int64(v)
	}
	if v, ok := lookupEnv("SCOPE_FOLLOW_SYMLINKS"); ok {
		cfg.Scope.FollowSymlinks = v == "true" || v == "1"
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func lookupIntEnv(key string) (int, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AnalyzerTimeout returns the configured analyzer timeout as a
// time.Duration, defaulting to 300s when unset.
func (c *Config) AnalyzerTimeout() time.Duration {
	if c.Ghidra.TimeoutMS <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Ghidra.TimeoutMS) * time.Millisecond
}
