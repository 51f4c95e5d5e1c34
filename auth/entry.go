package auth

import (
	"context"
	"errors"

	"github.com/go-ldap/ldap/v3"
)

// AggregateEntryResolverConfig configures an AggregateEntryResolver.
type AggregateEntryResolverConfig struct {
	// Resolvers maps each backend label to its entry resolver. Required,
	// non-empty; read-only after construction.
	Resolvers map[string]EntryResolver

	// Logger receives dispatch diagnostics. Defaults to NopLogger.
	Logger Logger
}

// AggregateEntryResolver fetches the directory entry for an authenticated
// user via the backend named by the criteria's MultiDN token. Only the
// first labeled entry is consulted: after the authentication stage's
// collapse there is exactly one, and a caller that skips that stage gets
// first-match semantics rather than an error.
type AggregateEntryResolver struct {
	resolvers map[string]EntryResolver
	logger    Logger
}

// NewAggregateEntryResolver creates an aggregate entry resolver.
func NewAggregateEntryResolver(config *AggregateEntryResolverConfig) (*AggregateEntryResolver, error) {
	if config == nil || len(config.Resolvers) == 0 {
		return nil, errors.New("at least one labeled entry resolver is required")
	}

	return &AggregateEntryResolver{
		resolvers: config.Resolvers,
		logger:    orNopLogger(config.Logger),
	}, nil
}

// ResolveEntry dispatches to the entry resolver registered for the token's
// first label, substituting the unwrapped DN into a copy of the criteria.
func (r *AggregateEntryResolver) ResolveEntry(ctx context.Context, criteria *AuthenticationCriteria, response *AuthenticationHandlerResponse) (*ldap.Entry, error) {
	mdn, err := DeserializeMultiDN(criteria.DN)
	if err != nil {
		return nil, err
	}

	first, ok := mdn.First()
	if !ok {
		return nil, &TokenError{Reason: "token holds no labeled DNs"}
	}

	resolver, ok := r.resolvers[first.Label]
	if !ok {
		return nil, &MissingLabelError{Label: first.Label, Kind: "entry resolver"}
	}

	r.logger.Debug("resolving entry", map[string]any{
		"label": first.Label,
		"dn":    first.Dn,
	})

	return resolver.ResolveEntry(ctx, criteria.WithDN(first.Dn), response)
}
