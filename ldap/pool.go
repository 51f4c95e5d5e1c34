package ldap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/dirfed/dirauth/auth"
)

// reAuthInterval bounds how long a pooled connection's service-account
// bind is trusted before it is refreshed.
const reAuthInterval = 5 * time.Minute

// connectionPool implements the ConnectionPool interface.
type connectionPool struct {
	config  *ConnectionConfig
	logger  auth.Logger
	servers []*ServerInfo

	mu          sync.RWMutex
	closed      bool
	connections chan *PooledConnection

	activeConns  atomic.Int64
	totalCreated atomic.Int64
	totalErrors  atomic.Int64
	startTime    time.Time
}

// NewConnectionPool creates a connection pool for the configured backend,
// discovering servers up front.
func NewConnectionPool(ctx context.Context, config *ConnectionConfig) (ConnectionPool, error) {
	if config == nil {
		config = NewConnectionConfig()
	}
	if err := config.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool := &connectionPool{
		config:      config,
		logger:      config.logger(),
		connections: make(chan *PooledConnection, config.MaxConnections),
		startTime:   time.Now(),
	}

	if err := pool.discoverServers(ctx); err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}

	return pool, nil
}

// discoverServers resolves the server list from configured URLs or SRV
// records.
func (p *connectionPool) discoverServers(ctx context.Context) error {
	var servers []*ServerInfo

	if len(p.config.LDAPURLs) > 0 {
		for _, url := range p.config.LDAPURLs {
			server, err := ParseLDAPURL(url)
			if err != nil {
				return fmt.Errorf("invalid LDAP URL %s: %w", url, err)
			}
			servers = append(servers, server)
		}
	} else {
		discoverCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		discovered, err := NewSRVDiscovery(p.logger).DiscoverServers(discoverCtx, p.config.Domain)
		if err != nil {
			return err
		}
		servers = discovered
	}

	if len(servers) == 0 {
		return errors.New("no servers discovered")
	}

	p.mu.Lock()
	p.servers = servers
	p.mu.Unlock()

	p.logger.Debug("directory servers discovered", map[string]any{
		"server_count": len(servers),
	})
	return nil
}

// Get retrieves a healthy connection from the pool, creating one when none
// is available.
func (p *connectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errors.New("connection pool is closed")
	}
	p.mu.RUnlock()

	select {
	case conn := <-p.connections:
		if p.isConnectionHealthy(conn) {
			if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
				if err := p.authenticateConnection(conn); err != nil {
					p.closeConnection(conn)
					break
				}
			}
			conn.lastUsed = time.Now()
			p.activeConns.Add(1)
			return conn, nil
		}
		p.closeConnection(conn)
	default:
		// No idle connections; fall through and dial.
	}

	return p.createConnection(ctx)
}

// createConnection dials a new connection, walking the server list with
// retry and exponential backoff.
func (p *connectionPool) createConnection(ctx context.Context) (*PooledConnection, error) {
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		for _, server := range p.servers {
			conn, err := p.createSingleConnection(server)
			if err != nil {
				lastErr = err
				p.totalErrors.Add(1)
				continue
			}

			p.totalCreated.Add(1)
			p.activeConns.Add(1)
			return conn, nil
		}

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*p.config.BackoffFactor), p.config.MaxBackoff)
			}
		}
	}

	return nil, NewConnectionError("failed to create connection after retries", true, lastErr)
}

// createSingleConnection dials one server, negotiating LDAPS or StartTLS
// per configuration.
func (p *connectionPool) createSingleConnection(server *ServerInfo) (*PooledConnection, error) {
	url := ServerInfoToURL(server)

	var conn *ldap.Conn
	var err error

	if server.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(p.config.TLSConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && p.config.UseTLS && !p.config.SkipTLS {
			err = conn.StartTLS(p.config.TLSConfig)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetTimeout(p.config.Timeout)

	pooledConn := &PooledConnection{
		conn:         conn,
		lastUsed:     time.Now(),
		healthy:      true,
		serverInfo:   server,
		returnToPool: p.returnConnection,
	}

	if p.config.HasAuthentication() {
		if err := p.authenticateConnection(pooledConn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate connection to %s: %w", url, err)
		}
	}

	return pooledConn, nil
}

// authenticateConnection performs the configured service-account bind on a
// pooled connection.
func (p *connectionPool) authenticateConnection(pooledConn *PooledConnection) error {
	if pooledConn == nil || pooledConn.conn == nil {
		return errors.New("connection is nil")
	}

	var err error
	switch p.config.GetAuthMethod() {
	case AuthMethodSimpleBind:
		err = pooledConn.conn.Bind(p.config.BindDN, p.config.BindPassword)
	case AuthMethodKerberos:
		err = performKerberosAuth(pooledConn.conn, p.config, pooledConn.serverInfo)
	default:
		return nil
	}

	if err != nil {
		pooledConn.authenticated = false
		pooledConn.authTime = time.Time{}
		return err
	}

	pooledConn.authenticated = true
	pooledConn.authTime = time.Now()
	return nil
}

// needsReAuthentication reports whether the connection's service-account
// bind is stale.
func (p *connectionPool) needsReAuthentication(conn *PooledConnection) bool {
	if conn == nil || !conn.authenticated {
		return true
	}
	return time.Since(conn.authTime) > reAuthInterval
}

// returnConnection puts a connection back into the pool, discarding it
// when the pool is closed, full, or the connection has gone stale.
func (p *connectionPool) returnConnection(conn *PooledConnection) {
	if conn == nil {
		return
	}

	p.activeConns.Add(-1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.closeConnection(conn)
		return
	}

	if p.isConnectionHealthy(conn) && time.Since(conn.lastUsed) < p.config.MaxIdleTime {
		select {
		case p.connections <- conn:
		default:
			p.closeConnection(conn)
		}
	} else {
		p.closeConnection(conn)
	}
}

// isConnectionHealthy checks whether a pooled connection is usable.
func (p *connectionPool) isConnectionHealthy(conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil || !conn.healthy {
		return false
	}

	if time.Since(conn.lastUsed) > p.config.MaxIdleTime {
		return false
	}

	if p.config.HasAuthentication() && !conn.authenticated {
		return false
	}

	return true
}

// closeConnection tears a connection down for good.
func (p *connectionPool) closeConnection(conn *PooledConnection) {
	if conn != nil && conn.conn != nil {
		conn.conn.Close()
		conn.healthy = false
		conn.authenticated = false
		conn.authTime = time.Time{}
	}
}

// Close closes all idle connections and shuts down the pool. Checked-out
// connections are closed as they are returned.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	close(p.connections)
	for conn := range p.connections {
		p.closeConnection(conn)
	}

	return nil
}

// Stats returns pool statistics.
func (p *connectionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Idle:    len(p.connections),
		Active:  p.activeConns.Load(),
		Created: p.totalCreated.Load(),
		Errors:  p.totalErrors.Load(),
		Uptime:  time.Since(p.startTime),
	}
}
