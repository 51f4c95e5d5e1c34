package ldap

import (
	"context"
	"errors"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/dirfed/dirauth/auth"
)

// BindAuthenticationHandler authenticates a user by binding as the
// resolved DN. A rejected credential (LDAP result 49) is reported as an
// unsuccessful response, not an error; transport failures surface as
// errors.
type BindAuthenticationHandler struct {
	client Client
	logger auth.Logger
}

// NewBindAuthenticationHandler creates a bind-based authentication handler.
func NewBindAuthenticationHandler(client Client, logger auth.Logger) (*BindAuthenticationHandler, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &BindAuthenticationHandler{
		client: client,
		logger: orNop(logger),
	}, nil
}

// Authenticate binds as the DN in the criteria with the request credential.
func (h *BindAuthenticationHandler) Authenticate(ctx context.Context, criteria *auth.AuthenticationCriteria) (*auth.AuthenticationHandlerResponse, error) {
	if criteria == nil || criteria.Request == nil {
		return nil, errors.New("criteria cannot be nil")
	}

	// An empty password would turn the bind into an unauthenticated bind,
	// which most servers accept. Refuse it outright.
	if len(criteria.Request.Credential) == 0 {
		return &auth.AuthenticationHandlerResponse{
			Success:    false,
			ResultCode: uint16(ldap.LDAPResultUnwillingToPerform),
			Message:    "empty credential refused",
		}, nil
	}

	start := time.Now()
	err := h.client.Bind(ctx, criteria.DN, string(criteria.Request.Credential.Bytes()))

	fields := map[string]any{
		"dn":          criteria.DN,
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if err == nil {
		h.logger.Debug("bind succeeded", fields)
		return &auth.AuthenticationHandlerResponse{
			Success:    true,
			ResultCode: uint16(ldap.LDAPResultSuccess),
		}, nil
	}

	if IsInvalidCredentials(err) {
		h.logger.Debug("bind rejected", fields)
		return &auth.AuthenticationHandlerResponse{
			Success:    false,
			ResultCode: uint16(ldap.LDAPResultInvalidCredentials),
			Message:    "invalid credentials",
		}, nil
	}

	fields["error"] = err.Error()
	h.logger.Error("bind failed", fields)
	return nil, NewError("bind", err)
}

// SearchEntryResolverConfig configures a search-based entry resolver.
type SearchEntryResolverConfig struct {
	// Client is the directory client the resolver searches with.
	Client Client

	// Attributes returned when the authentication request does not name
	// any. Empty means all user attributes.
	Attributes []string

	// DecodeIdentifiers adds objectGUIDString/objectSidString attributes
	// decoded from the binary AD identifiers.
	DecodeIdentifiers bool

	// TimeLimit is the per-search server-side time limit.
	TimeLimit time.Duration

	// Logger for resolver operations. Defaults to a no-op logger.
	Logger auth.Logger
}

// SearchEntryResolver fetches the authenticated user's entry with a
// base-object search at the resolved DN.
type SearchEntryResolver struct {
	config *SearchEntryResolverConfig
	logger auth.Logger
}

// NewSearchEntryResolver creates a search-based entry resolver.
func NewSearchEntryResolver(config *SearchEntryResolverConfig) (*SearchEntryResolver, error) {
	if config == nil || config.Client == nil {
		return nil, errors.New("client is required")
	}
	if config.TimeLimit <= 0 {
		config.TimeLimit = 10 * time.Second
	}
	return &SearchEntryResolver{
		config: config,
		logger: orNop(config.Logger),
	}, nil
}

// ResolveEntry reads the entry at the criteria DN. The request's
// ReturnAttributes take precedence over the configured attribute list.
func (r *SearchEntryResolver) ResolveEntry(ctx context.Context, criteria *auth.AuthenticationCriteria, _ *auth.AuthenticationHandlerResponse) (*ldap.Entry, error) {
	if criteria == nil || criteria.DN == "" {
		return nil, errors.New("criteria DN is required")
	}

	attrs := r.config.Attributes
	if criteria.Request != nil && len(criteria.Request.ReturnAttributes) > 0 {
		attrs = criteria.Request.ReturnAttributes
	}

	result, err := r.config.Client.Search(ctx, &SearchRequest{
		BaseDN:     criteria.DN,
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: attrs,
		SizeLimit:  1,
		TimeLimit:  r.config.TimeLimit,
	})
	if err != nil {
		return nil, err
	}

	if len(result.Entries) == 0 {
		return nil, &Error{
			Operation: "entry resolution",
			Category:  ErrorCategoryNotFound,
			Message:   "no entry at resolved DN",
			DN:        criteria.DN,
		}
	}

	entry := result.Entries[0]
	if r.config.DecodeIdentifiers {
		entry = DecodeEntryIdentifiers(entry)
	}

	r.logger.Debug("entry resolved", map[string]any{
		"dn":         entry.DN,
		"attributes": len(entry.Attributes),
	})

	return entry, nil
}

// CacheEvictResponseHandler drops a user's cached DN after a failed
// authentication, so a stale mapping from a rename or move cannot keep
// rejecting the user until the TTL expires.
type CacheEvictResponseHandler struct {
	cache  *DNCache
	logger auth.Logger
}

// NewCacheEvictResponseHandler creates the eviction handler for one
// backend cache.
func NewCacheEvictResponseHandler(cache *DNCache, logger auth.Logger) (*CacheEvictResponseHandler, error) {
	if cache == nil {
		return nil, errors.New("cache is required")
	}
	return &CacheEvictResponseHandler{
		cache:  cache,
		logger: orNop(logger),
	}, nil
}

// HandleResponse evicts the cached DN for the user when the
// authentication did not succeed.
func (h *CacheEvictResponseHandler) HandleResponse(_ context.Context, response *auth.AuthenticationResponse) error {
	if response == nil || response.Success {
		return nil
	}
	if response.User == nil || response.User.Identifier == "" {
		return nil
	}

	h.cache.Evict(response.User.Identifier)
	h.logger.Debug("evicted cached dn", map[string]any{
		"user": response.User.Identifier,
	})
	return nil
}
