package auth

import (
	"context"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// User identifies the principal whose DN is being resolved.
type User struct {
	// Identifier is the caller-supplied user identifier (uid, UPN, SAM
	// account name, mail address) fed to each backend resolver.
	Identifier string

	// Context carries optional backend-specific hints (tenant id, realm).
	Context map[string]string
}

func (u *User) String() string {
	if u == nil {
		return ""
	}
	return u.Identifier
}

// Credential is a secret used to authenticate a user. Its string form is
// redacted so it can appear in log fields without leaking.
type Credential []byte

func (c Credential) String() string {
	if len(c) == 0 {
		return ""
	}
	return "[REDACTED]"
}

// Bytes returns the raw credential material.
func (c Credential) Bytes() []byte {
	return c
}

// AuthenticationRequest is the caller's immutable description of one
// authentication attempt.
type AuthenticationRequest struct {
	User             *User
	Credential       Credential
	ReturnAttributes []string
}

// AuthenticationCriteria pairs a resolved DN with the originating request.
// The DN field holds either a bare DN or a serialized MultiDN token; the
// aggregate dispatchers rewrite it as the identity moves through the
// pipeline while the Request is never modified.
type AuthenticationCriteria struct {
	DN      string
	Request *AuthenticationRequest
}

// WithDN returns a copy of the criteria with the DN field replaced. The
// request is shared, not copied.
func (c *AuthenticationCriteria) WithDN(dn string) *AuthenticationCriteria {
	return &AuthenticationCriteria{DN: dn, Request: c.Request}
}

// AuthenticationHandlerResponse reports the outcome of a single
// authentication attempt. A rejected credential is a normal response with
// Success false, never an error.
type AuthenticationHandlerResponse struct {
	Success    bool
	ResultCode uint16
	Message    string
}

// AuthenticationResponse is the full outcome of an authentication pipeline
// run, consumed by response handlers.
type AuthenticationResponse struct {
	AuthenticationHandlerResponse

	// User is the principal the pipeline authenticated.
	User *User

	// ResolvedDN is the DN field as produced by the authentication stage:
	// a bare DN or a collapsed single-entry MultiDN token.
	ResolvedDN string

	// Entry is the directory entry for the authenticated user, when an
	// entry resolver ran.
	Entry *ldap.Entry
}

// DnResolver resolves a user identifier to a DN within one backend. An
// empty DN with a nil error means the backend has no match.
type DnResolver interface {
	ResolveDN(ctx context.Context, user *User) (string, error)
}

// AuthenticationHandler authenticates a resolved DN against one backend.
type AuthenticationHandler interface {
	Authenticate(ctx context.Context, criteria *AuthenticationCriteria) (*AuthenticationHandlerResponse, error)
}

// EntryResolver fetches the directory entry for an authenticated user from
// one backend.
type EntryResolver interface {
	ResolveEntry(ctx context.Context, criteria *AuthenticationCriteria, response *AuthenticationHandlerResponse) (*ldap.Entry, error)
}

// AuthenticationResponseHandler post-processes a completed authentication.
type AuthenticationResponseHandler interface {
	HandleResponse(ctx context.Context, response *AuthenticationResponse) error
}

// DnResolverFunc adapts a function to the DnResolver interface.
type DnResolverFunc func(ctx context.Context, user *User) (string, error)

func (f DnResolverFunc) ResolveDN(ctx context.Context, user *User) (string, error) {
	return f(ctx, user)
}

// AuthenticationResponseHandlerFunc adapts a function to the
// AuthenticationResponseHandler interface.
type AuthenticationResponseHandlerFunc func(ctx context.Context, response *AuthenticationResponse) error

func (f AuthenticationResponseHandlerFunc) HandleResponse(ctx context.Context, response *AuthenticationResponse) error {
	return f(ctx, response)
}

// sortedLabels returns registry labels in a stable order for logging.
func sortedLabels[V any](m map[string]V) string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
