package ldap

import (
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/dirfed/dirauth/auth"
)

func newIdlePool(t *testing.T) *connectionPool {
	t.Helper()

	config := NewConnectionConfig()
	config.Domain = "corp.example.org" // anonymous: no BindDN, no Kerberos

	return &connectionPool{
		config:      config,
		logger:      auth.NopLogger{},
		connections: make(chan *PooledConnection, config.MaxConnections),
		startTime:   time.Now(),
	}
}

func TestPoolDiscardsConnectionAfterUserBind(t *testing.T) {
	pool := newIdlePool(t)

	conn := &PooledConnection{
		lastUsed:     time.Now(),
		healthy:      true,
		returnToPool: pool.returnConnection,
	}

	// Client.Bind flags the connection before handing it back; the pool
	// runs anonymously here, so only the healthy flag can stop reuse.
	conn.authenticated = false
	conn.healthy = false

	conn.Close()

	if got := len(pool.connections); got != 0 {
		t.Fatalf("user-bound connection re-entered the idle pool (%d idle)", got)
	}
}

func TestPoolReusesHealthyAnonymousConnection(t *testing.T) {
	pool := newIdlePool(t)

	conn := &PooledConnection{
		conn:         &ldap.Conn{},
		lastUsed:     time.Now(),
		healthy:      true,
		returnToPool: pool.returnConnection,
	}

	conn.Close()

	if got := len(pool.connections); got != 1 {
		t.Fatalf("healthy anonymous connection was not pooled (%d idle)", got)
	}
}

func TestIsConnectionHealthy(t *testing.T) {
	pool := newIdlePool(t)

	tests := []struct {
		name string
		conn *PooledConnection
		want bool
	}{
		{
			name: "healthy anonymous",
			conn: &PooledConnection{conn: &ldap.Conn{}, healthy: true, lastUsed: time.Now()},
			want: true,
		},
		{
			name: "nil connection",
			conn: nil,
			want: false,
		},
		{
			name: "flagged after user bind",
			conn: &PooledConnection{conn: &ldap.Conn{}, healthy: false, lastUsed: time.Now()},
			want: false,
		},
		{
			name: "idle too long",
			conn: &PooledConnection{conn: &ldap.Conn{}, healthy: true, lastUsed: time.Now().Add(-time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pool.isConnectionHealthy(tt.conn); got != tt.want {
				t.Errorf("isConnectionHealthy() = %v, want %v", got, tt.want)
			}
		})
	}
}
