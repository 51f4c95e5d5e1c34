package ldap

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// PooledConnection is a directory connection checked out of a pool.
// Close returns it to the pool rather than tearing it down.
type PooledConnection struct {
	conn          *ldap.Conn
	lastUsed      time.Time
	healthy       bool
	authenticated bool
	authTime      time.Time
	serverInfo    *ServerInfo
	returnToPool  func(*PooledConnection)
}

// Close returns the connection to its pool.
func (pc *PooledConnection) Close() {
	if pc.returnToPool != nil {
		pc.returnToPool(pc)
	}
}

// Conn exposes the underlying go-ldap connection.
func (pc *PooledConnection) Conn() *ldap.Conn {
	return pc.conn
}

// ServerInfo returns the server this connection is bound to.
func (pc *PooledConnection) ServerInfo() *ServerInfo {
	return pc.serverInfo
}

// ServerInfo describes one directory server endpoint.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// ConnectionPool manages a pool of directory connections.
type ConnectionPool interface {
	// Get retrieves a connection from the pool.
	Get(ctx context.Context) (*PooledConnection, error)

	// Close closes all connections and shuts down the pool.
	Close() error

	// Stats returns pool statistics.
	Stats() PoolStats
}

// PoolStats provides statistics about a connection pool.
type PoolStats struct {
	Idle    int           // Idle connections
	Active  int64         // Active (checked-out) connections
	Created int64         // Total connections created
	Errors  int64         // Total connection errors
	Uptime  time.Duration // Pool uptime
}

// Client provides the directory operations the resolver and authentication
// components are built on.
type Client interface {
	// Connect verifies that a pooled connection can be established.
	Connect(ctx context.Context) error

	// Close shuts down the client and its pool.
	Close() error

	// Bind authenticates the supplied DN and password on a dedicated
	// connection, leaving pooled service-account connections untouched.
	Bind(ctx context.Context, dn, password string) error

	// Search performs a directory search.
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)

	// Ping tests connectivity via the root DSE.
	Ping(ctx context.Context) error

	// Stats returns pool statistics.
	Stats() PoolStats
}

// SearchRequest encapsulates directory search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
}

// SearchResult contains search results and metadata.
type SearchResult struct {
	Entries []*ldap.Entry
	Total   int
}

// SearchScope defines directory search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

// String returns the string representation of the scope.
func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-establishment failures.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

// DirectoryError marks connection failures as directory-domain failures
// for the aggregation layer.
func (e *ConnectionError) DirectoryError() bool {
	return true
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}
