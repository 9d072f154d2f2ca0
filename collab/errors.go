package collab

import "errors"

// Errors returned by collaborator adapters.
var (
	ErrLlmUnavailable      = errors.New("llm collaborator unavailable")
	ErrVectorDbUnavailable = errors.New("vector database collaborator unavailable")
	ErrAnalyzerTimeout     = errors.New("binary analyzer timed out")
	ErrBinaryNotFound      = errors.New("binary not found")
	ErrScriptNotFound      = errors.New("analyzer script not found")
)

// ExitNonZero is returned by BinaryAnalyzerAdapter.RunScript when the
// headless analyzer process exits with a non-zero status. It carries the
// exit code and combined output so callers can render a specific message.
type ExitNonZero struct {
	Code   int
	Output string
}

func (e *ExitNonZero) Error() string {
	return "binary analyzer exited non-zero"
}
