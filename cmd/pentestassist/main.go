// Command pentestassist is the entry point for the penetration-testing
// assistant CLI: a flag-based top-level parse followed by a REPL loop that
// feeds each line to the Orchestrator.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pentestassist/pentestassist/collab"
	gathercmd "github.com/pentestassist/pentestassist/command/gather"
	projectcmd "github.com/pentestassist/pentestassist/command/project"
	"github.com/pentestassist/pentestassist/config"
	"github.com/pentestassist/pentestassist/core/project"
	"github.com/pentestassist/pentestassist/gather"
	"github.com/pentestassist/pentestassist/orchestrator"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses top-level flags, builds the component graph, and runs the
// REPL until stdin is exhausted or the user types "exit"/"quit". Returns
// 0 on clean exit, 2 on a configuration error.
func run(args []string) int {
	fs := flag.NewFlagSet("pentestassist", flag.ContinueOnError)
	configPath := fs.String("config", "pentestassist.yaml", "path to configuration file")
	dataFile := fs.String("data", "", "override project.data.file persistence path")
	versionFlag := fs.Bool("version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pentestassist [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *versionFlag {
		fmt.Printf("pentestassist %s (commit: %s)\n", version, commit)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 2
	}
	if *dataFile != "" {
		cfg.Project.DataFile = *dataFile
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pm := project.NewManager(time.Now)
	if cfg.Project.DataFile != "" {
		if err := pm.LoadAll(cfg.Project.DataFile, logger); err != nil {
			logger.Warn("loading persisted projects", "path", cfg.Project.DataFile, "error", err)
		}
	}

	scope := gather.NewScopePolicy(cfg.Scope.AllowedRoots, cfg.Scope.BlockedGlobs, cfg.Scope.MaxFileBytes, cfg.Scope.FollowSymlinks)
	g := gather.New(pm, gather.WithLogger(logger))

	projProc := projectcmd.New(pm, time.Now)
	gatherProc := gathercmd.New(g, scope)

	o := orchestrator.New(projProc, gatherProc, buildAnalyzer(cfg), buildEmbedder(cfg), buildVectorDB(cfg), buildLLM(cfg),
		orchestrator.WithSystemPrompt(cfg.LLM.PromptPrefix))

	exitCode := repl(o)

	if cfg.Project.DataFile != "" {
		if err := pm.PersistAll(cfg.Project.DataFile); err != nil {
			logger.Error("persisting projects", "path", cfg.Project.DataFile, "error", err)
			return 2
		}
	}
	return exitCode
}

func buildLLM(cfg *config.Config) collab.LLMAdapter {
	if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		return nil
	}
	return collab.NewOpenAIAdapter(
		collab.WithModel(cfg.LLM.Model),
		collab.WithAPIKey(cfg.LLM.APIKey),
		collab.WithBaseURL(cfg.LLM.BaseURL),
	)
}

func buildEmbedder(cfg *config.Config) collab.EmbeddingAdapter {
	if cfg.Embedding.BackendType == "" {
		return nil
	}
	return collab.NewOpenAIEmbeddingAdapter(cfg.Embedding.Model, cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
}

func buildVectorDB(cfg *config.Config) collab.VectorDBAdapter {
	if cfg.VectorDB.Endpoint == "" {
		return nil
	}
	return collab.NewHTTPVectorDBAdapter(cfg.VectorDB.Endpoint, 10*time.Second, 30*time.Second)
}

func buildAnalyzer(cfg *config.Config) collab.BinaryAnalyzerAdapter {
	if cfg.Ghidra.HeadlessPath == "" {
		return nil
	}
	return collab.NewProcessAnalyzerAdapter(cfg.Ghidra.HeadlessPath, cfg.Ghidra.ProjectDir, cfg.Ghidra.ProjectName, cfg.Ghidra.ScriptDir, cfg.AnalyzerTimeout())
}

func repl(o *orchestrator.Orchestrator) int {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("pentestassist ready. Type a command, or 'exit' to quit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" || line == "quit" {
			break
		}
		fmt.Println(o.Process(context.Background(), line))
	}
	return 0
}
