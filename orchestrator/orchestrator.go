// Package orchestrator implements the single entry point that routes a
// free-form input line to the project command processor, the information
// gathering command processor, or one of the external collaborator
// adapters, in a fixed precedence order. It holds no mutable state of its
// own; all concurrency is delegated to the components it wraps.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pentestassist/pentestassist/collab"
)

// CommandProcessor matches and handles a natural-language command line.
type CommandProcessor interface {
	Matches(line string) bool
	Process(line string) string
}

var (
	binaryAnalysisKeywords = regexp.MustCompile(`(?i)ghidra|analyze|binary|reverse engineer|function|extract`)
	embeddingKeywords      = regexp.MustCompile(`(?i)embed|vector|generate|convert`)
	quotedText             = regexp.MustCompile(`"([^"]+)"`)
	vectorSearchKeywords   = regexp.MustCompile(`(?i)search|find|similar|query|database|db|vectordb|chroma`)
	llmKeywords            = regexp.MustCompile(`(?i)llm|generate|text|ai|response`)
)

// Orchestrator routes a single input line to exactly one category, in the
// fixed precedence: project commands, gathering commands, binary analysis,
// embedding, vector search, LLM generation, general chat.
type Orchestrator struct {
	projectProcessor  CommandProcessor
	gatherProcessor   CommandProcessor
	analyzer          collab.BinaryAnalyzerAdapter
	embedder          collab.EmbeddingAdapter
	vectorDB          collab.VectorDBAdapter
	llm               collab.LLMAdapter
	defaultSystemText string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystemPrompt overrides the default system prompt prepended to
// general-chat lines forwarded to the LLM collaborator.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		if prompt != "" {
			o.defaultSystemText = prompt
		}
	}
}

// New builds an Orchestrator. Any collaborator adapter may be nil; a
// category whose adapter is nil reports unavailability rather than panics.
func New(projectProcessor, gatherProcessor CommandProcessor, analyzer collab.BinaryAnalyzerAdapter, embedder collab.EmbeddingAdapter, vectorDB collab.VectorDBAdapter, llm collab.LLMAdapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		projectProcessor:  projectProcessor,
		gatherProcessor:   gatherProcessor,
		analyzer:          analyzer,
		embedder:          embedder,
		vectorDB:          vectorDB,
		llm:               llm,
		defaultSystemText: "You are a penetration testing assistant. Answer concisely and factually.",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process routes line to the first matching category and returns its
// rendered response. When a category's collaborator is unavailable, the
// returned string names the category and reason rather than falling
// through to another category, since silently trying a different
// collaborator could produce a misleading answer to a security question.
func (o *Orchestrator) Process(ctx context.Context, line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "[ERROR] empty command"
	}

	if o.projectProcessor != nil && o.projectProcessor.Matches(trimmed) {
		return o.projectProcessor.Process(trimmed)
	}
	if o.gatherProcessor != nil && o.gatherProcessor.Matches(trimmed) {
		return o.gatherProcessor.Process(trimmed)
	}
	if binaryAnalysisKeywords.MatchString(trimmed) {
		return o.handleBinaryAnalysis(ctx, trimmed)
	}
	if embeddingKeywords.MatchString(trimmed) && quotedText.MatchString(trimmed) {
		return o.handleEmbedding(ctx, trimmed)
	}
	if vectorSearchKeywords.MatchString(trimmed) {
		return o.handleVectorSearch(ctx, trimmed)
	}
	if llmKeywords.MatchString(trimmed) {
		return o.handleLLM(ctx, trimmed)
	}
	return o.handleLLM(ctx, trimmed)
}

func (o *Orchestrator) handleBinaryAnalysis(ctx context.Context, line string) string {
	if o.analyzer == nil {
		return "[ERROR] binary-analysis: collaborator unavailable"
	}
	m := quotedText.FindStringSubmatch(line)
	if m == nil {
		return "[ERROR] binary-analysis: expected a quoted binary path, e.g. analyze \"/path/to/binary\""
	}
	out, err := o.analyzer.RunScript(ctx, m[1], "default_analysis.py", nil)
	if err != nil {
		return fmt.Sprintf("[ERROR] binary-analysis: %v", err)
	}
	return out
}

func (o *Orchestrator) handleEmbedding(ctx context.Context, line string) string {
	if o.embedder == nil {
		return "[ERROR] embedding: collaborator unavailable"
	}
	m := quotedText.FindStringSubmatch(line)
	if m == nil {
		return "[ERROR] embedding: expected quoted text to embed"
	}
	vec, err := o.embedder.Embed(ctx, m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] embedding: %v", err)
	}
	return fmt.Sprintf("embedded %d dimensions", len(vec))
}

func (o *Orchestrator) handleVectorSearch(ctx context.Context, line string) string {
	if o.vectorDB == nil || o.embedder == nil {
		return "[ERROR] vector-search: collaborator unavailable"
	}
	m := quotedText.FindStringSubmatch(line)
	if m == nil {
		return "[ERROR] vector-search: expected quoted query text"
	}
	vec, err := o.embedder.Embed(ctx, m[1])
	if err != nil {
		return fmt.Sprintf("[ERROR] vector-search: embedding query: %v", err)
	}
	matches, err := o.vectorDB.QueryNearest(ctx, "findings", vec, 5)
	if err != nil {
		return fmt.Sprintf("[ERROR] vector-search: %v", err)
	}
	if len(matches) == 0 {
		return "no matches found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d matches:\n", len(matches))
	for _, mt := range matches {
		fmt.Fprintf(&b, "  %s (distance=%.4f)\n", mt.ID, mt.Distance)
	}
	return b.String()
}

func (o *Orchestrator) handleLLM(ctx context.Context, line string) string {
	if o.llm == nil {
		return "[ERROR] llm: collaborator unavailable"
	}
	prompt := o.defaultSystemText + "\n\n" + line
	out, err := o.llm.Generate(ctx, prompt, 0)
	if err != nil {
		return fmt.Sprintf("[ERROR] llm: %v", err)
	}
	return out
}
