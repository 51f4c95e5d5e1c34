package auth

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Sentinel errors for category matching with errors.Is. The concrete error
// types below carry the detail; each reports Is(sentinel) true for its
// category.
var (
	// ErrAmbiguousMatch indicates more than one backend resolved a DN while
	// the policy allows only one.
	ErrAmbiguousMatch = errors.New("multiple DNs resolved")

	// ErrMissingLabel indicates a token names a label with no registry
	// binding. Always a configuration defect, never retried.
	ErrMissingLabel = errors.New("no binding for label")

	// ErrMalformedToken indicates a serialized MultiDN token could not be
	// parsed.
	ErrMalformedToken = errors.New("malformed multidn token")

	// ErrExecutorShutdown indicates a task was submitted after Shutdown.
	ErrExecutorShutdown = errors.New("executor is shut down")
)

// DirectoryFailure marks errors raised by a directory backend itself, as
// opposed to infrastructure faults around it. The fan-out engine propagates
// the first directory failure and swallows everything else.
type DirectoryFailure interface {
	error
	DirectoryError() bool
}

// IsDirectoryError reports whether err originates from a directory backend.
// Raw go-ldap protocol errors count as directory failures alongside any
// error implementing DirectoryFailure.
func IsDirectoryError(err error) bool {
	if err == nil {
		return false
	}

	var df DirectoryFailure
	if errors.As(err, &df) {
		return df.DirectoryError()
	}

	var le *ldap.Error
	return errors.As(err, &le)
}

// AmbiguousMatchError is returned by AggregateDnResolver.Resolve when more
// than one backend produced a DN and AllowMultipleDNs is false.
type AmbiguousMatchError struct {
	// User is the identifier whose resolution was ambiguous.
	User string

	// Count is the number of DNs resolved.
	Count int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("resolved %d DNs for %q, multiple DNs are not allowed", e.Count, e.User)
}

func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// MissingLabelError is returned when a token references a label absent from
// the consulted registry.
type MissingLabelError struct {
	// Label is the unbound label.
	Label string

	// Kind names the registry that was consulted, e.g. "authentication
	// handler" or "entry resolver".
	Kind string
}

func (e *MissingLabelError) Error() string {
	return fmt.Sprintf("no %s registered for label %q", e.Kind, e.Label)
}

func (e *MissingLabelError) Is(target error) bool {
	return target == ErrMissingLabel
}

// TokenError is returned when a MultiDN token fails to parse. The parse is
// all-or-nothing: a TokenError never accompanies a partial result.
type TokenError struct {
	// Reason describes the defect.
	Reason string

	// Cause is the underlying decode error, if any.
	Cause error
}

func (e *TokenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed multidn token: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed multidn token: %s", e.Reason)
}

func (e *TokenError) Is(target error) bool {
	return target == ErrMalformedToken
}

func (e *TokenError) Unwrap() error {
	return e.Cause
}
