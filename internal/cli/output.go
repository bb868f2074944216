package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/five82/roster/internal/api"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The API rejected the request (validation, not found)
	ExitCommandError = 2 // Bad usage, config or input files
	ExitAuth         = 3 // Sign-in required or session rejected
	ExitUnavailable  = 4 // Backend unreachable or failing
)

// ExitError represents an error with a specific exit code.
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

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. API errors map by kind;
// anything else is ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch api.KindOf(err) {
	case api.KindAuth, api.KindNoToken:
		return ExitAuth
	case api.KindTransport, api.KindServer, api.KindDecode:
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// apiFailure wraps a failed API call with the action that caused it.
func apiFailure(action string, err error) error {
	return &ExitError{Code: GetExitCode(err), Message: action, Err: err}
}

// errorDetails returns the machine code and field errors reported in
// json/yaml mode.
func errorDetails(err error) (string, interface{}) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if len(apiErr.Fields) > 0 {
			return apiErr.Kind.String(), apiErr.Fields
		}
		return apiErr.Kind.String(), nil
	}
	switch GetExitCode(err) {
	case ExitCommandError:
		return "usage", nil
	case ExitAuth:
		return "auth", nil
	default:
		return "error", nil
	}
}

// OutputFormatter handles text, JSON and YAML output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON/YAML response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status" yaml:"status"`
	Data   interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code" yaml:"code"`
	Message string      `json:"message" yaml:"message"`
	Details interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

// textWriter is implemented by results with a human-readable layout.
type textWriter interface {
	WriteText(w io.Writer) error
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	switch f.Format {
	case "json":
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	case "yaml":
		generic, err := jsonGeneric(data)
		if err != nil {
			return err
		}
		return f.encodeYAML(CLIResponse{Status: "ok", Data: generic})
	}

	if tw, ok := data.(textWriter); ok {
		return tw.WriteText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	resp := CLIResponse{
		Status: "error",
		Error:  &CLIError{Code: code, Message: message, Details: details},
	}
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(resp)
	case "yaml":
		generic, err := jsonGeneric(details)
		if err != nil {
			return err
		}
		resp.Error.Details = generic
		return f.encodeYAML(resp)
	}

	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encodeYAML(v interface{}) error {
	enc := yaml.NewEncoder(f.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON or YAML, verbose logs go to ErrWriter to avoid
// corrupting the output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// jsonGeneric round-trips v through JSON so YAML output uses the same
// field names as the API.
func jsonGeneric(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// listing is a list result: the items for json/yaml and a table for text.
type listing struct {
	items   interface{}
	columns []string
	rows    [][]string
}

func (l listing) MarshalJSON() ([]byte, error) { return json.Marshal(l.items) }

func (l listing) WriteText(w io.Writer) error {
	if len(l.rows) == 0 {
		_, err := fmt.Fprintln(w, "No rows")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(l.columns, "\t"))
	for _, row := range l.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// record is a single object result shown as "field: value" lines.
type record struct {
	item   interface{}
	fields [][2]string
}

func (r record) MarshalJSON() ([]byte, error) { return json.Marshal(r.item) }

func (r record) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range r.fields {
		fmt.Fprintf(tw, "%s:\t%s\n", f[0], f[1])
	}
	return tw.Flush()
}

// message is a plain confirmation.
type message struct {
	Text string `json:"message"`
}

func (m message) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, m.Text)
	return err
}
