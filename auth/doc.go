/*
Package auth implements labeled multi-backend authentication for directory
services.

A deployment that spans several directory instances (federated forests,
multi-tenant naming contexts) cannot know up front which backend a given
principal belongs to. This package resolves that by fanning a single user
lookup out across a registry of labeled DN resolvers, carrying the winning
label alongside the DN through the rest of the authentication pipeline, and
dispatching each later stage to the backend that produced the match.

# Architecture Overview

The package is organized around four aggregate components that mirror the
capability contracts they aggregate:

  - AggregateDnResolver: concurrent fan-out DN resolution over labeled backends
  - AggregateAuthenticationHandler: ordered authentication attempts per label
  - AggregateEntryResolver: entry fetch via the authenticated backend
  - AggregateAuthenticationResponseHandler: post-auth handler chains per label

Each aggregate is transparently substitutable wherever a single-backend
implementation of the same capability is expected.

# Labeled DN Tokens

The fan-out resolver produces a MultiDN: an ordered list of (label, DN)
pairs. It travels between pipeline stages serialized into an opaque token
that occupies the DN slot of the authentication criteria. The token is
self-describing (a fixed prefix distinguishes it from a bare DN) and
round-trips exactly; see MultiDN.Serialize and DeserializeMultiDN.

After a successful authentication against one backend, the token is
collapsed to that single label so downstream stages resolve entries and run
response handlers against exactly one backend.

# Concurrency

DN resolution is the only concurrent stage. Backend lookups run on a shared
Executor sized independently of the backend count; results are collected in
completion order. The first directory failure aborts the call, remaining
completions drain in the background, and in-flight lookups are never
cancelled. All other stages run sequentially on the caller's goroutine.

Registries are read-only after construction, so every aggregate is safe for
concurrent use.

# Example Usage

	exec := auth.NewExecutor(8)
	defer exec.Shutdown()

	resolver, err := auth.NewAggregateDnResolver(&auth.AggregateDnResolverConfig{
		Resolvers: map[string]auth.DnResolver{
			"corp": corpResolver,
			"lab":  labResolver,
		},
		Executor: exec,
	})
	if err != nil {
		return err
	}

	mdn, err := resolver.Resolve(ctx, &auth.User{Identifier: "jdoe"})
	if err != nil || mdn.IsEmpty() {
		return err
	}

	criteria := &auth.AuthenticationCriteria{DN: mdn.Serialize(), Request: req}
	resp, err := authHandler.Authenticate(ctx, criteria)
*/
package auth
