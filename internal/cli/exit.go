package cli

import "fmt"

// Process exit codes of the zrc binary.
const (
	ExitUnknownBenchmark  = 1
	ExitBadLocation       = 2
	ExitInvalidSubmission = 3
)

// ExitError carries a process exit code through the command tree to
// Execute.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func exitErrf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
