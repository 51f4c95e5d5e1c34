package ldap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"github.com/dirfed/dirauth/auth"
)

// MaxConnectionPoolLimit caps the connections one pool may hold. It keeps
// a misconfigured pool from exhausting server connection slots or client
// sockets; typical directory servers default to far higher limits.
const MaxConnectionPoolLimit = 100

// ConnectionConfig holds configuration for one directory backend. Zero
// fields are filled from the `default` tags by NewConnectionConfig or
// defaults.Set.
type ConnectionConfig struct {
	// Connection settings
	Domain   string        // Domain for SRV discovery
	LDAPURLs []string      // Direct LDAP URLs (override SRV discovery)
	Timeout  time.Duration `default:"30s"` // Per-connection timeout

	// Service-account authentication, used by pooled connections for
	// searches. End-user binds use the DN resolved by the pipeline.
	BindDN       string // DN or UPN for simple bind
	BindPassword string // Password for simple bind

	// Kerberos settings
	KerberosRealm  string // Realm for GSSAPI authentication
	KerberosKeytab string // Path to keytab file
	KerberosCCache string // Path to credential cache
	KerberosConfig string // Path to krb5.conf
	KerberosSPN    string // Explicit service principal override

	// TLS settings
	TLSConfig *tls.Config // Custom TLS configuration
	UseTLS    bool        `default:"true"` // Upgrade plain connections with StartTLS
	SkipTLS   bool        // Skip TLS entirely (not recommended)

	// Pool settings
	MaxConnections int           `default:"10"`
	MaxIdleTime    time.Duration `default:"5m"`

	// Retry settings
	MaxRetries     int           `default:"3"`
	InitialBackoff time.Duration `default:"500ms"`
	MaxBackoff     time.Duration `default:"30s"`
	BackoffFactor  float64       `default:"2.0"`

	// Logger receives transport diagnostics. Defaults to auth.NopLogger.
	Logger auth.Logger
}

// NewConnectionConfig returns a config with secure defaults applied.
func NewConnectionConfig() *ConnectionConfig {
	config := &ConnectionConfig{}
	// The tag set contains only valid literals.
	_ = defaults.Set(config)
	config.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	return config
}

// ApplyDefaults fills zero fields from the struct's default tags.
func (c *ConnectionConfig) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if c.TLSConfig == nil {
		c.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.Logger == nil {
		c.Logger = auth.NopLogger{}
	}
	return nil
}

// Validate checks the configuration for values the pool cannot operate
// with.
func (c *ConnectionConfig) Validate() error {
	if c.Domain == "" && len(c.LDAPURLs) == 0 {
		return errors.New("either Domain or LDAPURLs must be specified")
	}

	if c.MaxConnections <= 0 {
		return errors.New("MaxConnections must be positive")
	}

	if c.MaxConnections > MaxConnectionPoolLimit {
		return fmt.Errorf("MaxConnections too high (max %d)", MaxConnectionPoolLimit)
	}

	if c.MaxIdleTime <= 0 {
		return errors.New("MaxIdleTime must be positive")
	}

	if c.Timeout <= 0 {
		return errors.New("Timeout must be positive")
	}

	if c.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}

	if c.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}

	return nil
}

// AuthMethod is the service-account authentication method for pooled
// connections.
type AuthMethod int

const (
	AuthMethodAnonymous  AuthMethod = iota // No service-account bind
	AuthMethodSimpleBind                   // DN/password bind
	AuthMethodKerberos                     // GSSAPI bind
)

// String returns the string representation of the authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodAnonymous:
		return "anonymous"
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the service-account method from the
// configuration. Kerberos takes precedence over simple bind.
func (c *ConnectionConfig) GetAuthMethod() AuthMethod {
	if c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.BindDN != "") {
		return AuthMethodKerberos
	}

	if c.BindDN != "" {
		return AuthMethodSimpleBind
	}

	return AuthMethodAnonymous
}

// HasAuthentication reports whether a service-account method is
// configured.
func (c *ConnectionConfig) HasAuthentication() bool {
	return c.GetAuthMethod() != AuthMethodAnonymous
}

// logger returns the configured logger, or a nop logger.
func (c *ConnectionConfig) logger() auth.Logger {
	return orNop(c.Logger)
}

// orNop substitutes a nop logger for nil.
func orNop(logger auth.Logger) auth.Logger {
	if logger == nil {
		return auth.NopLogger{}
	}
	return logger
}
