package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // validation or compilation failure
	ExitCommandError = 2 // command error (bad paths, database unreachable, etc.)
)

// Error codes surfaced in structured output.
const (
	ErrCodeLoadFailed     = "load_failed"
	ErrCodeInvalidBundle  = "invalid_bundle"
	ErrCodeCompileFailed  = "compile_failed"
	ErrCodeWriteFailed    = "write_failed"
	ErrCodeDatabaseFailed = "database_failed"
	ErrCodeActionFailed   = "action_failed"
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error. Non-ExitErrors map to
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results either as human-readable text or
// as one JSON response document per invocation.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; defaults to Writer
	Verbose   bool
}

// Response is the standard JSON response shape for CLI output.
type Response struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *ErrorDoc `json:"error,omitempty"`
}

// ErrorDoc is the error structure for CLI responses.
type ErrorDoc struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) emit(resp Response) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.emit(Response{Status: "ok", Data: data})
	}
	if s, ok := data.(fmt.Stringer); ok {
		fmt.Fprintln(f.Writer, s.String())
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format. String-slice details
// render one bulleted line each, so collected validation problems stay
// scannable.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.emit(Response{
			Status: "error",
			Error:  &ErrorDoc{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	switch d := details.(type) {
	case nil:
	case []string:
		for _, line := range d {
			fmt.Fprintf(f.Writer, "  - %s\n", line)
		}
	default:
		fmt.Fprintf(f.Writer, "  %v\n", d)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on. Diagnostics
// go to ErrWriter so they never corrupt JSON on stdout.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
