package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/bjaus/evproc/internal/rules"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // events failed, input aborted, or rules invalid
	ExitCommandError = 2 // bad flags, config, or unreadable files
)

// ExitError ends a command with a specific exit status. main maps it to
// os.Exit through GetExitCode.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError fails a command with code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError fails a command with code, prefixing err with message.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the status a command's error should exit with: 0 for
// nil, the carried code for an *ExitError, ExitFailure otherwise.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// Printer writes command output in the configured format. JSON output is
// one object per line.
type Printer struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// JSON writes v as one line of JSON.
func (p *Printer) JSON(v any) error {
	data, err := rules.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.Writer, "%s\n", data)
	return err
}

// Emission prints one rule emission.
func (p *Printer) Emission(e rules.Emission) {
	if p.Format == "json" {
		_ = p.JSON(e)
		return
	}
	if e.Message == "" {
		fmt.Fprintf(p.Writer, "%s %s\n", e.Rule, e.Action)
		return
	}
	fmt.Fprintf(p.Writer, "%s %s: %s\n", e.Rule, e.Action, e.Message)
}

// VerboseLog writes diagnostics to ErrWriter when verbose output is on.
func (p *Printer) VerboseLog(format string, args ...any) {
	if !p.Verbose {
		return
	}
	w := p.ErrWriter
	if w == nil {
		w = p.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
