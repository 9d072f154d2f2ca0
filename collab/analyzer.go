package collab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ProcessAnalyzerAdapter implements BinaryAnalyzerAdapter by invoking a
// headless binary-analysis tool (e.g. Ghidra's analyzeHeadless) as a
// subprocess, communicating over stdout/stderr rather than a control
// protocol. The tool is given a scratch project directory and project name
// and asked to import the binary and run a post-analysis script against it.
type ProcessAnalyzerAdapter struct {
	// HeadlessPath is the path to the headless analyzer executable.
	HeadlessPath string
	// ProjectDir is the analyzer's scratch directory.
	ProjectDir string
	// ProjectName identifies the analyzer project inside ProjectDir.
	ProjectName string
	// ScriptDir, when non-empty, is searched for relative script names.
	ScriptDir string
	// Timeout bounds a single script invocation.
	Timeout time.Duration
}

// NewProcessAnalyzerAdapter builds an adapter. timeout defaults to 300s.
func NewProcessAnalyzerAdapter(headlessPath, projectDir, projectName, scriptDir string, timeout time.Duration) *ProcessAnalyzerAdapter {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &ProcessAnalyzerAdapter{
		HeadlessPath: headlessPath,
		ProjectDir:   projectDir,
		ProjectName:  projectName,
		ScriptDir:    scriptDir,
		Timeout:      timeout,
	}
}

// RunScript imports binaryPath into the configured analyzer project and
// executes scriptName against it, returning combined stdout/stderr. Errors
// distinguish a missing tool binary, a missing target binary, a missing
// script file, a timeout (the child process is killed), and a non-zero
// exit (ExitNonZero, which callers can inspect for partial output).
func (a *ProcessAnalyzerAdapter) RunScript(ctx context.Context, binaryPath, scriptName string, args []string) (string, error) {
	if _, err := os.Stat(a.HeadlessPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, a.HeadlessPath)
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, binaryPath)
	}
	scriptPath := scriptName
	if a.ScriptDir != "" && !filepath.IsAbs(scriptName) {
		scriptPath = filepath.Join(a.ScriptDir, scriptName)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrScriptNotFound, scriptPath)
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	cmdArgs := []string{a.ProjectDir, a.ProjectName, "-import", binaryPath, "-postScript", scriptPath}
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, "-deleteProject")
	cmd := exec.CommandContext(ctx, a.HeadlessPath, cmdArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Stop waiting on the output pipe shortly after the child is killed,
	// even if a grandchild process still holds it open.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("%w: %s", ErrAnalyzerTimeout, scriptName)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), &ExitNonZero{Code: exitErr.ExitCode(), Output: out.String()}
		}
		return out.String(), fmt.Errorf("running %s: %w", scriptName, err)
	}
	return out.String(), nil
}
