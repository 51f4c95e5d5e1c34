package auth

import (
	"context"
	"errors"
	"time"
)

// AggregateAuthenticationHandlerConfig configures an
// AggregateAuthenticationHandler.
type AggregateAuthenticationHandlerConfig struct {
	// Handlers maps each backend label to its authentication handler.
	// Required, non-empty; read-only after construction.
	Handlers map[string]AuthenticationHandler

	// Logger receives per-attempt diagnostics. Defaults to NopLogger.
	Logger Logger
}

// AggregateAuthenticationHandler authenticates a serialized MultiDN by
// trying the handler registered for each label in token order and stopping
// at the first success. Attempts are deliberately sequential: fanning bind
// attempts out in parallel would trip lockout counters on the backends that
// do not hold the account.
type AggregateAuthenticationHandler struct {
	handlers map[string]AuthenticationHandler
	logger   Logger
}

// NewAggregateAuthenticationHandler creates an aggregate authentication
// handler.
func NewAggregateAuthenticationHandler(config *AggregateAuthenticationHandlerConfig) (*AggregateAuthenticationHandler, error) {
	if config == nil || len(config.Handlers) == 0 {
		return nil, errors.New("at least one labeled authentication handler is required")
	}

	return &AggregateAuthenticationHandler{
		handlers: config.Handlers,
		logger:   orNopLogger(config.Logger),
	}, nil
}

// Authenticate deserializes criteria.DN as a MultiDN token and tries each
// entry in serialized order against the handler registered for its label.
//
// On the first success no further entries are tried; when the token held
// more than one entry, criteria.DN is rewritten to a single-entry token for
// the winning label so downstream stages see exactly one backend. When
// every entry fails, the last handler's failed response is returned with a
// nil error: a rejected credential is a normal outcome, not a failure of
// the pipeline.
//
// A label without a registered handler aborts immediately with a
// *MissingLabelError; an unparseable DN field aborts with a *TokenError.
func (h *AggregateAuthenticationHandler) Authenticate(ctx context.Context, criteria *AuthenticationCriteria) (*AuthenticationHandlerResponse, error) {
	mdn, err := DeserializeMultiDN(criteria.DN)
	if err != nil {
		return nil, err
	}
	if mdn.IsEmpty() {
		return nil, &TokenError{Reason: "token holds no labeled DNs"}
	}

	var last *AuthenticationHandlerResponse
	for _, entry := range mdn.Entries() {
		handler, ok := h.handlers[entry.Label]
		if !ok {
			return nil, &MissingLabelError{Label: entry.Label, Kind: "authentication handler"}
		}

		start := time.Now()
		response, err := handler.Authenticate(ctx, criteria.WithDN(entry.Dn))
		if err != nil {
			return nil, err
		}

		h.logger.Debug("authentication attempt completed", map[string]any{
			"label":       entry.Label,
			"dn":          entry.Dn,
			"success":     response.Success,
			"duration_ms": time.Since(start).Milliseconds(),
		})

		last = response
		if response.Success {
			if mdn.Len() > 1 {
				// Collapse so entry resolution and response handling
				// consult only the backend that authenticated the user.
				criteria.DN = NewMultiDN(entry.Label, entry.Dn).Serialize()
			}
			return response, nil
		}
	}

	return last, nil
}
