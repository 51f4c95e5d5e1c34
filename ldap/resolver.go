package ldap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"

	"github.com/dirfed/dirauth/auth"
)

// SearchDnResolverConfig configures a search-based DN resolver.
type SearchDnResolverConfig struct {
	// Client is the directory client the resolver searches with.
	Client Client

	// BaseDN is the subtree the search starts from.
	BaseDN string

	// UserFilter is a filter template with exactly one %s verb that is
	// replaced by the escaped user identifier, e.g.
	// "(&(objectClass=person)(uid=%s))".
	UserFilter string

	// Scope of the search.
	Scope SearchScope `default:"2"`

	// SizeLimit caps the number of entries the server returns. Two is
	// enough to detect an ambiguous match.
	SizeLimit int `default:"2"`

	// TimeLimit is the per-search server-side time limit.
	TimeLimit time.Duration `default:"10s"`

	// Logger for resolver operations. Defaults to a no-op logger.
	Logger auth.Logger
}

// SearchDnResolver resolves a user identifier to a DN by searching one
// directory backend. A search with no match resolves to an empty DN and a
// nil error; more than one match is a directory error.
type SearchDnResolver struct {
	config *SearchDnResolverConfig
	logger auth.Logger
}

// NewSearchDnResolver creates a search-based DN resolver.
func NewSearchDnResolver(config *SearchDnResolverConfig) (*SearchDnResolver, error) {
	if config == nil {
		return nil, errors.New("configuration cannot be nil")
	}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if config.Client == nil {
		return nil, errors.New("client is required")
	}
	if config.BaseDN == "" {
		return nil, errors.New("base DN is required")
	}
	if strings.Count(config.UserFilter, "%s") != 1 {
		return nil, errors.New("user filter must contain exactly one %s verb")
	}

	return &SearchDnResolver{
		config: config,
		logger: orNop(config.Logger),
	}, nil
}

// ResolveDN searches the configured subtree for the user and returns the
// matching entry's DN.
func (r *SearchDnResolver) ResolveDN(ctx context.Context, user *auth.User) (string, error) {
	filter := fmt.Sprintf(r.config.UserFilter, ldap.EscapeFilter(user.Identifier))

	result, err := r.config.Client.Search(ctx, &SearchRequest{
		BaseDN:     r.config.BaseDN,
		Scope:      r.config.Scope,
		Filter:     filter,
		Attributes: []string{"1.1"}, // DN only
		SizeLimit:  r.config.SizeLimit,
		TimeLimit:  r.config.TimeLimit,
	})
	if err != nil {
		return "", err
	}

	switch len(result.Entries) {
	case 0:
		r.logger.Debug("no entry matched", map[string]any{
			"user":    user.Identifier,
			"base_dn": r.config.BaseDN,
		})
		return "", nil
	case 1:
		return result.Entries[0].DN, nil
	default:
		return "", &Error{
			Operation: "dn resolution",
			Category:  ErrorCategoryValidation,
			Message:   fmt.Sprintf("filter matched %d entries for %q", len(result.Entries), user.Identifier),
		}
	}
}

// FormatDnResolver builds a DN from a format template without touching the
// directory, e.g. "uid=%s,ou=people,dc=example,dc=org".
type FormatDnResolver struct {
	format string
}

// NewFormatDnResolver creates a format-based DN resolver. The template must
// contain exactly one %s verb for the escaped user identifier.
func NewFormatDnResolver(format string) (*FormatDnResolver, error) {
	if strings.Count(format, "%s") != 1 {
		return nil, errors.New("DN format must contain exactly one %s verb")
	}
	return &FormatDnResolver{format: format}, nil
}

// ResolveDN formats the user identifier into the DN template.
func (r *FormatDnResolver) ResolveDN(_ context.Context, user *auth.User) (string, error) {
	if user == nil || user.Identifier == "" {
		return "", nil
	}
	return fmt.Sprintf(r.format, ldap.EscapeDN(user.Identifier)), nil
}

// CachingDnResolver decorates a DN resolver with a per-backend cache.
// Failed resolutions are not cached.
type CachingDnResolver struct {
	resolver auth.DnResolver
	cache    *DNCache
	logger   auth.Logger
}

// NewCachingDnResolver wraps a resolver with the supplied cache. A nil
// cache gets default tuning.
func NewCachingDnResolver(resolver auth.DnResolver, cache *DNCache, logger auth.Logger) (*CachingDnResolver, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if cache == nil {
		cache = NewDNCache(0, 0)
	}
	return &CachingDnResolver{
		resolver: resolver,
		cache:    cache,
		logger:   orNop(logger),
	}, nil
}

// ResolveDN returns the cached DN when present, delegating to the wrapped
// resolver otherwise.
func (r *CachingDnResolver) ResolveDN(ctx context.Context, user *auth.User) (string, error) {
	if user == nil || user.Identifier == "" {
		return r.resolver.ResolveDN(ctx, user)
	}

	if dn, ok := r.cache.Get(user.Identifier); ok {
		r.logger.Trace("dn cache hit", map[string]any{"user": user.Identifier})
		return dn, nil
	}

	dn, err := r.resolver.ResolveDN(ctx, user)
	if err != nil {
		return "", err
	}
	if dn != "" {
		r.cache.Put(user.Identifier, dn)
	}
	return dn, nil
}

// Cache exposes the underlying cache, primarily for eviction handlers.
func (r *CachingDnResolver) Cache() *DNCache {
	return r.cache
}
