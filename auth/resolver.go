package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AggregateDnResolverConfig configures an AggregateDnResolver.
type AggregateDnResolverConfig struct {
	// Resolvers maps each backend label to its DN resolver. Required,
	// non-empty; read-only after construction.
	Resolvers map[string]DnResolver

	// AllowMultipleDNs permits more than one backend to resolve a DN for
	// the same user. When false, a multi-backend match fails with an
	// AmbiguousMatchError.
	AllowMultipleDNs bool

	// Executor runs backend lookups. When nil, a pool of
	// DefaultExecutorWorkers workers is created for this resolver.
	Executor *Executor

	// Logger receives fan-out diagnostics. Defaults to NopLogger.
	Logger Logger
}

// AggregateDnResolver resolves a user's DN by querying every labeled
// backend concurrently and collecting the matches into a MultiDN. It is
// safe for concurrent use.
type AggregateDnResolver struct {
	resolvers        map[string]DnResolver
	allowMultipleDNs bool
	executor         *Executor
	logger           Logger
}

// labeledOutcome is one backend's completion, delivered on the per-call
// result channel.
type labeledOutcome struct {
	label string
	dn    string
	err   error
}

// NewAggregateDnResolver creates an aggregate DN resolver.
func NewAggregateDnResolver(config *AggregateDnResolverConfig) (*AggregateDnResolver, error) {
	if config == nil || len(config.Resolvers) == 0 {
		return nil, errors.New("at least one labeled DN resolver is required")
	}

	executor := config.Executor
	if executor == nil {
		executor = NewExecutorWithLogger(DefaultExecutorWorkers, config.Logger)
	}

	return &AggregateDnResolver{
		resolvers:        config.Resolvers,
		allowMultipleDNs: config.AllowMultipleDNs,
		executor:         executor,
		logger:           orNopLogger(config.Logger),
	}, nil
}

// Resolve submits one lookup per backend to the shared executor and
// collects completions in arrival order. The first directory failure aborts
// the call and is returned verbatim; infrastructure failures from
// individual backends are logged and ignored. In-flight lookups are never
// cancelled; once the call has decided its outcome the remaining
// completions drain in the background.
//
// An empty MultiDN with a nil error means no backend matched.
func (r *AggregateDnResolver) Resolve(ctx context.Context, user *User) (*MultiDN, error) {
	if user == nil || user.Identifier == "" {
		return nil, errors.New("user identifier is required")
	}

	resolutionID := uuid.NewString()
	start := time.Now()
	n := len(r.resolvers)

	// Buffered to task count so completions never block after the call has
	// returned; a per-call channel keeps concurrent resolutions isolated.
	outcomes := make(chan labeledOutcome, n)

	for label, resolver := range r.resolvers {
		if err := r.submit(ctx, outcomes, label, resolver, user); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("submitted DN resolvers", map[string]any{
		"resolution_id": resolutionID,
		"user":          user.Identifier,
		"backends":      sortedLabels(r.resolvers),
	})

	mdn := &MultiDN{}
	for received := 0; received < n; received++ {
		select {
		case <-ctx.Done():
			go r.drain(outcomes, n-received, resolutionID)
			return nil, ctx.Err()

		case outcome := <-outcomes:
			if outcome.err != nil {
				if IsDirectoryError(outcome.err) {
					go r.drain(outcomes, n-received-1, resolutionID)
					return nil, outcome.err
				}
				r.logger.Warn("DN resolver failed, ignoring", map[string]any{
					"resolution_id": resolutionID,
					"label":         outcome.label,
					"error":         outcome.err.Error(),
				})
				continue
			}
			if outcome.dn != "" {
				mdn.Add(outcome.label, outcome.dn)
				r.logger.Debug("DN resolver matched", map[string]any{
					"resolution_id": resolutionID,
					"label":         outcome.label,
					"dn":            outcome.dn,
				})
			}
		}
	}

	if mdn.Len() > 1 && !r.allowMultipleDNs {
		return nil, &AmbiguousMatchError{User: user.Identifier, Count: mdn.Len()}
	}

	r.logger.Debug("DN resolution completed", map[string]any{
		"resolution_id": resolutionID,
		"user":          user.Identifier,
		"matches":       mdn.Len(),
		"duration_ms":   time.Since(start).Milliseconds(),
	})

	return mdn, nil
}

// submit schedules one backend lookup. The task reports exactly one outcome
// and converts panics into infrastructure failures.
func (r *AggregateDnResolver) submit(ctx context.Context, outcomes chan<- labeledOutcome, label string, resolver DnResolver, user *User) error {
	return r.executor.Submit(func() {
		dn, err := func() (dn string, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("DN resolver %q panicked: %v", label, p)
				}
			}()
			return resolver.ResolveDN(ctx, user)
		}()
		outcomes <- labeledOutcome{label: label, dn: dn, err: err}
	})
}

// drain consumes the completions the call no longer cares about, logging
// their failures at debug level.
func (r *AggregateDnResolver) drain(outcomes <-chan labeledOutcome, remaining int, resolutionID string) {
	for i := 0; i < remaining; i++ {
		outcome := <-outcomes
		if outcome.err != nil {
			r.logger.Debug("late DN resolver failure discarded", map[string]any{
				"resolution_id": resolutionID,
				"label":         outcome.label,
				"error":         outcome.err.Error(),
			})
		}
	}
}

// AllowMultipleDNs reports the configured multiple-match policy.
func (r *AggregateDnResolver) AllowMultipleDNs() bool {
	return r.allowMultipleDNs
}

// Shutdown releases the executor. Queued and in-flight lookups finish on
// their own; Shutdown never waits for them. A second call is a no-op. A
// caller-supplied shared executor is shut down for every component using
// it.
func (r *AggregateDnResolver) Shutdown() {
	r.executor.Shutdown()
}
