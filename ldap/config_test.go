package ldap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionConfigDefaults(t *testing.T) {
	config := NewConnectionConfig()

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.True(t, config.UseTLS)
	assert.Equal(t, 10, config.MaxConnections)
	assert.Equal(t, 5*time.Minute, config.MaxIdleTime)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, config.InitialBackoff)
	assert.Equal(t, 30*time.Second, config.MaxBackoff)
	assert.Equal(t, 2.0, config.BackoffFactor)
	require.NotNil(t, config.TLSConfig)
	assert.Equal(t, uint16(0x0303), config.TLSConfig.MinVersion) // TLS 1.2
}

func TestConnectionConfigApplyDefaultsPreservesValues(t *testing.T) {
	config := &ConnectionConfig{
		Timeout:        5 * time.Second,
		MaxConnections: 2,
	}
	require.NoError(t, config.ApplyDefaults())

	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 2, config.MaxConnections)
	assert.Equal(t, 3, config.MaxRetries)
	assert.NotNil(t, config.Logger)
}

func TestConnectionConfigValidate(t *testing.T) {
	valid := func() *ConnectionConfig {
		c := NewConnectionConfig()
		c.Domain = "corp.example.org"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*ConnectionConfig) {},
		},
		{
			name: "no domain and no urls",
			mutate: func(c *ConnectionConfig) {
				c.Domain = ""
			},
			wantErr: "either Domain or LDAPURLs",
		},
		{
			name: "urls without domain is fine",
			mutate: func(c *ConnectionConfig) {
				c.Domain = ""
				c.LDAPURLs = []string{"ldaps://dc1.corp.example.org:636"}
			},
		},
		{
			name: "pool too large",
			mutate: func(c *ConnectionConfig) {
				c.MaxConnections = MaxConnectionPoolLimit + 1
			},
			wantErr: "MaxConnections too high",
		},
		{
			name: "zero pool",
			mutate: func(c *ConnectionConfig) {
				c.MaxConnections = 0
			},
			wantErr: "MaxConnections must be positive",
		},
		{
			name: "negative retries",
			mutate: func(c *ConnectionConfig) {
				c.MaxRetries = -1
			},
			wantErr: "MaxRetries cannot be negative",
		},
		{
			name: "backoff factor at 1.0",
			mutate: func(c *ConnectionConfig) {
				c.BackoffFactor = 1.0
			},
			wantErr: "BackoffFactor must be greater",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestGetAuthMethod(t *testing.T) {
	tests := []struct {
		name   string
		config ConnectionConfig
		want   AuthMethod
	}{
		{
			name: "anonymous",
			want: AuthMethodAnonymous,
		},
		{
			name:   "simple bind",
			config: ConnectionConfig{BindDN: "cn=svc,dc=example"},
			want:   AuthMethodSimpleBind,
		},
		{
			name:   "kerberos with keytab",
			config: ConnectionConfig{KerberosRealm: "CORP.EXAMPLE.ORG", KerberosKeytab: "/etc/svc.keytab"},
			want:   AuthMethodKerberos,
		},
		{
			name:   "kerberos takes precedence over simple bind",
			config: ConnectionConfig{KerberosRealm: "CORP.EXAMPLE.ORG", BindDN: "svc@CORP.EXAMPLE.ORG", BindPassword: "x"},
			want:   AuthMethodKerberos,
		},
		{
			name:   "realm alone is not enough",
			config: ConnectionConfig{KerberosRealm: "CORP.EXAMPLE.ORG"},
			want:   AuthMethodAnonymous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.GetAuthMethod())
		})
	}
}
