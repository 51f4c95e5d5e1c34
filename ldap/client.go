package ldap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/dirfed/dirauth/auth"
)

// client implements the Client interface on top of a connection pool.
type client struct {
	pool   ConnectionPool
	config *ConnectionConfig
	logger auth.Logger
}

// NewClient creates a directory client with connection pooling for one
// backend.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = NewConnectionConfig()
	}
	if err := config.ApplyDefaults(); err != nil {
		return nil, err
	}

	logger := config.logger()
	start := time.Now()

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		logger.Error("failed to create connection pool", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	logger.Debug("directory client created", map[string]any{
		"domain":      config.Domain,
		"urls":        len(config.LDAPURLs),
		"auth_method": config.GetAuthMethod().String(),
		"pool_size":   config.MaxConnections,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &client{
		pool:   pool,
		config: config,
		logger: logger,
	}, nil
}

// Connect verifies that a connection can be established and the root DSE
// answered.
func (c *client) Connect(ctx context.Context) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	defer conn.Close()

	return c.ping(conn)
}

// Close closes the client and all its connections.
func (c *client) Close() error {
	return c.pool.Close()
}

// Bind authenticates the supplied DN and password. The connection is
// discarded when returned, so an end-user bind never leaks into later
// searches.
func (c *client) Bind(ctx context.Context, dn, password string) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	// The bind replaces the connection's identity. Marking it unhealthy
	// keeps the session out of the idle pool even when the pool itself
	// runs anonymously and never checks the authenticated flag.
	defer func() {
		conn.authenticated = false
		conn.healthy = false
	}()

	return c.withRetry(ctx, func() error {
		return conn.Conn().Bind(dn, password)
	})
}

// Search performs a directory search.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, errors.New("search request cannot be nil")
	}

	start := time.Now()
	fields := map[string]any{
		"base_dn": req.BaseDN,
		"scope":   req.Scope.String(),
		"filter":  req.Filter,
	}

	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		nil,
	)

	var result *ldap.SearchResult
	err = c.withRetry(ctx, func() error {
		var searchErr error
		result, searchErr = conn.Conn().Search(ldapReq)
		return searchErr
	})

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		c.logger.Error("search failed", fields)
		return nil, NewError("search", err)
	}

	fields["entries_found"] = len(result.Entries)
	c.logger.Debug("search completed", fields)

	return &SearchResult{
		Entries: result.Entries,
		Total:   len(result.Entries),
	}, nil
}

// Ping tests connectivity to the directory server.
func (c *client) Ping(ctx context.Context) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return c.ping(conn)
}

// ping performs a root DSE search on the supplied connection.
func (c *client) ping(conn *PooledConnection) error {
	searchReq := ldap.NewSearchRequest(
		"", // root DSE
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext"},
		nil,
	)

	_, err := conn.Conn().Search(searchReq)
	return err
}

// Stats returns pool statistics.
func (c *client) Stats() PoolStats {
	return c.pool.Stats()
}

// withRetry executes an operation with retry and exponential backoff for
// retryable failures.
func (c *client) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				c.logger.Debug("operation succeeded after retries", map[string]any{
					"attempts": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}

		if attempt == c.config.MaxRetries {
			break
		}

		c.logger.Debug("retrying operation", map[string]any{
			"attempt":    attempt + 1,
			"max_retry":  c.config.MaxRetries,
			"backoff_ms": backoff.Milliseconds(),
			"error":      err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	return NewConnectionError("operation failed after retries", false, lastErr)
}

// isRetryableError determines if an error should be retried.
func (c *client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if ldap.IsErrorWithCode(err, ldap.LDAPResultBusy) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnavailable) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultServerDown) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultOperationsError) {
		return true
	}

	return IsRetryableError(err)
}
