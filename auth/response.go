package auth

import (
	"context"
	"errors"
)

// AggregateAuthenticationResponseHandlerConfig configures an
// AggregateAuthenticationResponseHandler.
type AggregateAuthenticationResponseHandlerConfig struct {
	// Handlers maps each backend label to its ordered response handler
	// chain. Required, non-empty; read-only after construction.
	Handlers map[string][]AuthenticationResponseHandler

	// Logger receives dispatch diagnostics. Defaults to NopLogger.
	Logger Logger
}

// AggregateAuthenticationResponseHandler runs the post-authentication
// handler chain registered for the backend that authenticated the user.
// Handlers run in registration order; the first failure stops the chain.
type AggregateAuthenticationResponseHandler struct {
	handlers map[string][]AuthenticationResponseHandler
	logger   Logger
}

// NewAggregateAuthenticationResponseHandler creates an aggregate response
// handler.
func NewAggregateAuthenticationResponseHandler(config *AggregateAuthenticationResponseHandlerConfig) (*AggregateAuthenticationResponseHandler, error) {
	if config == nil || len(config.Handlers) == 0 {
		return nil, errors.New("at least one labeled response handler chain is required")
	}

	return &AggregateAuthenticationResponseHandler{
		handlers: config.Handlers,
		logger:   orNopLogger(config.Logger),
	}, nil
}

// HandleResponse dispatches the response to the handler chain registered
// for the first label of the response's resolved-DN token. An unregistered
// label fails with a *MissingLabelError; a handler failure is returned
// immediately and the rest of the chain is skipped.
func (h *AggregateAuthenticationResponseHandler) HandleResponse(ctx context.Context, response *AuthenticationResponse) error {
	mdn, err := DeserializeMultiDN(response.ResolvedDN)
	if err != nil {
		return err
	}

	first, ok := mdn.First()
	if !ok {
		return &TokenError{Reason: "token holds no labeled DNs"}
	}

	chain, ok := h.handlers[first.Label]
	if !ok {
		return &MissingLabelError{Label: first.Label, Kind: "response handlers"}
	}

	for i, handler := range chain {
		if err := handler.HandleResponse(ctx, response); err != nil {
			h.logger.Debug("response handler failed", map[string]any{
				"label":    first.Label,
				"position": i,
				"error":    err.Error(),
			})
			return err
		}
	}

	return nil
}
