package collab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func analyzerFixture(t *testing.T, toolBody string) (*ProcessAnalyzerAdapter, string) {
	t.Helper()
	dir := t.TempDir()
	tool := writeExecutable(t, dir, "headless", toolBody)
	binary := filepath.Join(dir, "target.bin")
	if err := os.WriteFile(binary, []byte{0x7f, 'E', 'L', 'F'}, 0o644); err != nil {
		t.Fatal(err)
	}
	scriptDir := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scriptDir, "list_functions.py"), []byte("# analysis script\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := NewProcessAnalyzerAdapter(tool, filepath.Join(dir, "proj"), "scratch", scriptDir, 5*time.Second)
	return a, binary
}

func TestRunScriptCapturesCombinedOutput(t *testing.T) {
	a, binary := analyzerFixture(t, `echo "stdout line"; echo "stderr line" >&2`)

	out, err := a.RunScript(context.Background(), binary, "list_functions.py", []string{"-max", "100"})
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if !strings.Contains(out, "stdout line") || !strings.Contains(out, "stderr line") {
		t.Errorf("expected combined stdout/stderr, got %q", out)
	}
}

func TestRunScriptMissingTool(t *testing.T) {
	a, binary := analyzerFixture(t, "exit 0")
	a.HeadlessPath = filepath.Join(t.TempDir(), "no-such-tool")

	_, err := a.RunScript(context.Background(), binary, "list_functions.py", nil)
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestRunScriptMissingScript(t *testing.T) {
	a, binary := analyzerFixture(t, "exit 0")

	_, err := a.RunScript(context.Background(), binary, "no_such_script.py", nil)
	if !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestRunScriptNonZeroExit(t *testing.T) {
	a, binary := analyzerFixture(t, `echo "partial output"; exit 3`)

	out, err := a.RunScript(context.Background(), binary, "list_functions.py", nil)
	var exitErr *ExitNonZero
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitNonZero, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(out, "partial output") {
		t.Errorf("expected partial output to be preserved, got %q", out)
	}
}

func TestRunScriptTimeout(t *testing.T) {
	a, binary := analyzerFixture(t, "sleep 5")
	a.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := a.RunScript(context.Background(), binary, "list_functions.py", nil)
	if !errors.Is(err, ErrAnalyzerTimeout) {
		t.Fatalf("expected ErrAnalyzerTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout did not kill the child promptly (took %s)", elapsed)
	}
}
