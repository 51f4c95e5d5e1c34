package ldap

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dirfed/dirauth/auth"
)

// SRVDiscovery locates directory servers through DNS SRV records.
type SRVDiscovery struct {
	logger   auth.Logger
	resolver *net.Resolver
}

// NewSRVDiscovery creates a new SRV discovery instance.
func NewSRVDiscovery(logger auth.Logger) *SRVDiscovery {
	if logger == nil {
		logger = auth.NopLogger{}
	}
	return &SRVDiscovery{
		logger:   logger,
		resolver: net.DefaultResolver,
	}
}

// DiscoverServers discovers directory servers for a domain using SRV
// records, preferring `_ldaps._tcp` over `_ldap._tcp`, falling back to the
// domain itself on ports 636/389 when no records exist.
func (d *SRVDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	start := time.Now()

	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	srvRecords := []struct {
		service string
		useTLS  bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
	}

	var allServers []*ServerInfo
	for _, record := range srvRecords {
		servers, err := d.lookupSRV(ctx, record.service, record.useTLS)
		if err != nil {
			d.logger.Debug("SRV lookup failed, continuing to next service", map[string]any{
				"service": record.service,
				"error":   err.Error(),
			})
			continue
		}
		allServers = append(allServers, servers...)

		// LDAPS servers are preferred; stop once any were found.
		if record.useTLS && len(servers) > 0 {
			break
		}
	}

	if len(allServers) == 0 {
		d.logger.Debug("no SRV records found, using fallback servers", map[string]any{
			"domain":      domain,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return fallbackServers(domain), nil
	}

	sortServersByPriority(allServers)

	d.logger.Debug("server discovery completed", map[string]any{
		"domain":       domain,
		"server_count": len(allServers),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return allServers, nil
}

// lookupSRV performs the SRV record lookup for one service name.
func (d *SRVDiscovery) lookupSRV(ctx context.Context, service string, useTLS bool) ([]*ServerInfo, error) {
	_, srvRecords, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}

	if len(srvRecords) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	var servers []*ServerInfo
	for _, srv := range srvRecords {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}

	return servers, nil
}

// fallbackServers builds the standard-port endpoints used when SRV
// discovery yields nothing.
func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: 636, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServersByPriority orders servers by SRV priority ascending, then
// weight descending, per RFC 2782.
func sortServersByPriority(servers []*ServerInfo) {
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}

// ValidateServerInfo validates server information.
func ValidateServerInfo(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}

	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}

	if server.Priority < 0 {
		return fmt.Errorf("priority cannot be negative: %d", server.Priority)
	}

	if server.Weight < 0 {
		return fmt.Errorf("weight cannot be negative: %d", server.Weight)
	}

	return nil
}

// ServerInfoToURL converts ServerInfo to an LDAP URL.
func ServerInfoToURL(server *ServerInfo) string {
	scheme := "ldap"
	if server.UseTLS {
		scheme = "ldaps"
	}

	return fmt.Sprintf("%s://%s:%d", scheme, server.Host, server.Port)
}

// ParseLDAPURL parses an ldap:// or ldaps:// URL into ServerInfo.
// Explicitly configured URLs sort ahead of discovered servers.
func ParseLDAPURL(url string) (*ServerInfo, error) {
	if url == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	var useTLS bool
	switch {
	case strings.HasPrefix(url, "ldaps://"):
		useTLS = true
		url = strings.TrimPrefix(url, "ldaps://")
	case strings.HasPrefix(url, "ldap://"):
		url = strings.TrimPrefix(url, "ldap://")
	default:
		return nil, fmt.Errorf("unsupported scheme, must be ldap:// or ldaps://")
	}

	// Strip any path component.
	if i := strings.IndexByte(url, '/'); i >= 0 {
		url = url[:i]
	}

	host := url
	port := 389
	if useTLS {
		port = 636
	}

	if i := strings.LastIndexByte(url, ':'); i >= 0 {
		host = url[:i]
		parsed, err := strconv.Atoi(url[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", url[i+1:])
		}
		port = parsed
	}

	server := &ServerInfo{
		Host:     host,
		Port:     port,
		UseTLS:   useTLS,
		Priority: 0,
		Weight:   100,
		Source:   "config",
	}

	return server, ValidateServerInfo(server)
}
