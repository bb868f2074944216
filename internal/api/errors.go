package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies API failures so callers can react without string matching.
type Kind int

const (
	// KindUnknown is never produced by the client; it is what KindOf reports
	// for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindNoToken means no session token was available; no request was sent.
	KindNoToken
	// KindTransport covers network failures and timeouts.
	KindTransport
	// KindAuth is a 401/403 response or an expired token.
	KindAuth
	// KindValidation is any other 4xx response, usually with field messages.
	KindValidation
	// KindServer is a 5xx response.
	KindServer
	// KindDecode means the response body was malformed or failed validation.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNoToken:
		return "no_token"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ErrNoToken is wrapped by every KindNoToken error.
var ErrNoToken = errors.New("no session token")

// FieldError is a validation message attached to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

// Error is returned for every failed API call.
type Error struct {
	Kind    Kind
	Method  string
	Path    string
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Method != "" || e.Path != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	switch {
	case e.Status > 0 && e.Message != "":
		fmt.Fprintf(&b, "status %d: %s", e.Status, e.Message)
	case e.Status > 0:
		fmt.Fprintf(&b, "returned status %d", e.Status)
	case e.Message != "":
		b.WriteString(e.Message)
	default:
		b.WriteString(e.Kind.String() + " error")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// FieldMessage returns the message for field, if any.
func (e *Error) FieldMessage(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// KindOf reports the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err requires the user to sign in again.
func IsAuth(err error) bool {
	k := KindOf(err)
	return k == KindAuth || k == KindNoToken
}

// IsValidation reports whether err carries user-fixable input errors.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsRetryable reports whether repeating the same call might succeed.
// Nothing in roster retries automatically; the UI uses this for hints.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindTransport || k == KindServer
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// errorBody covers the error payload shapes the backend produces.
type errorBody struct {
	Message     string            `json:"message"`
	Error       string            `json:"error"`
	Errors      map[string]string `json:"errors"`
	FieldErrors []FieldError      `json:"fieldErrors"`
}

func (b errorBody) message() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

func (b errorBody) fields() []FieldError {
	fields := append([]FieldError(nil), b.FieldErrors...)
	if len(b.Errors) > 0 {
		names := make([]string, 0, len(b.Errors))
		for name := range b.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fields = append(fields, FieldError{Field: name, Message: b.Errors[name]})
		}
	}
	return fields
}
