// Package errors classifies processing failures so callers can branch on
// kind: permanent validation failures are never retried, transient misses are
// requeued, ambiguity is resolved conservatively.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind is the failure classification of a ProcessError.
type Kind string

const (
	KindInvalidIdentifier Kind = "invalid_identifier"
	KindTransientNotFound Kind = "transient_not_found"
	KindFatalNotFound     Kind = "fatal_not_found"
	KindAmbiguousMatch    Kind = "ambiguous_match"
	KindExternalService   Kind = "external_service"
	KindClusteringFailure Kind = "clustering_failure"
)

// ProcessError is a classified pipeline failure.
type ProcessError struct {
	Kind       Kind
	RecordType string
	Identifier string
	Attempts   int
	Message    string
	cause      error
}

func New(kind Kind, msg string) *ProcessError {
	return &ProcessError{
		Kind:    kind,
		Message: msg,
	}
}

// Newf creates a ProcessError with a formatted message. A %w directive wraps
// the error as the cause.
func Newf(kind Kind, format string, args ...any) *ProcessError {
	var cause error
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
			cause = err
		}
	}
	return &ProcessError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

func (e *ProcessError) Error() string {
	parts := []string{}
	if e.RecordType != "" {
		parts = append(parts, fmt.Sprintf("record '%s'", e.RecordType))
	}
	if e.Identifier != "" {
		parts = append(parts, fmt.Sprintf("identifier '%s'", e.Identifier))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, strings.Join(parts, " -> "), e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.cause
}

func (e *ProcessError) AddRecordType(recordType string) *ProcessError {
	e.RecordType = recordType
	return e
}

func (e *ProcessError) AddIdentifier(identifier string) *ProcessError {
	e.Identifier = identifier
	return e
}

func (e *ProcessError) AddAttempts(attempts int) *ProcessError {
	e.Attempts = attempts
	return e
}

func (e *ProcessError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusInternalServerError
	if e.Kind == KindInvalidIdentifier {
		status = http.StatusBadRequest
	}
	return httperror.NewHTTPError(status, e.Error()).AddMetaValue("kind", string(e.Kind)).AddMetaValue("record_type", e.RecordType)
}

// KindOf returns the kind of err, or "" when err is not a ProcessError.
func KindOf(err error) Kind {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func IsInvalidIdentifier(err error) bool { return KindOf(err) == KindInvalidIdentifier }
func IsTransientNotFound(err error) bool { return KindOf(err) == KindTransientNotFound }
func IsFatalNotFound(err error) bool     { return KindOf(err) == KindFatalNotFound }
func IsAmbiguousMatch(err error) bool    { return KindOf(err) == KindAmbiguousMatch }
func IsExternalService(err error) bool   { return KindOf(err) == KindExternalService }
func IsClusteringFailure(err error) bool { return KindOf(err) == KindClusteringFailure }
