// Package errs defines the abstract error kinds the reposync engine
// distinguishes on (spec §7), each carrying an underlying cause.
package errs

import "github.com/pkg/errors"

// Kind classifies an error for the purpose of deciding whether the
// scheduler aborts a run, skips a repository, or aborts a single provider
// job.
type Kind string

const (
	ConfigInvalid             Kind = "ConfigInvalid"
	InvalidRepositoryURL      Kind = "InvalidRepositoryUrl"
	CredentialResolutionFailed Kind = "CredentialResolutionFailed"
	ForgeEnumerationFailed    Kind = "ForgeEnumerationFailed"
	GitSyncFailed             Kind = "GitSyncFailed"
	StorageTransient          Kind = "StorageTransient"
	StorageNotFound           Kind = "StorageNotFound"
	IndexCorrupt              Kind = "IndexCorrupt"
	CronInvalid               Kind = "CronInvalid"
	Cancelled                 Kind = "Cancelled"
)

// Error pairs a Kind with an underlying cause, matching the teacher's
// convention of wrapping with github.com/pkg/errors and inspecting causes
// at call boundaries rather than defining a zoo of sentinel error values.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause with a Kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Wrapf wraps cause with a Kind and a formatted message, via pkg/errors so
// the resulting error retains a stack trace.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: errors.Wrapf(cause, format, args...)}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err's Kind matches kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
