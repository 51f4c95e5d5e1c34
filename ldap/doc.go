// Package ldap provides directory-backed implementations of the auth
// package's resolver and handler interfaces, built on go-ldap with
// connection pooling, retry, SRV-based server discovery, and optional
// Kerberos/GSSAPI service-account authentication.
//
// A typical backend wires four pieces around one pooled Client:
//
//	cfg := ldap.NewConnectionConfig()
//	cfg.Domain = "corp.example.org"
//	cfg.BindDN = "svc-auth@CORP.EXAMPLE.ORG"
//	cfg.BindPassword = password
//
//	client, err := ldap.NewClient(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	resolver, err := ldap.NewSearchDnResolver(&ldap.SearchDnResolverConfig{
//		Client:     client,
//		BaseDN:     "ou=people,dc=corp,dc=example,dc=org",
//		UserFilter: "(&(objectClass=person)(sAMAccountName=%s))",
//	})
//	if err != nil {
//		return err
//	}
//	handler, err := ldap.NewBindAuthenticationHandler(client, nil)
//
// The resolver, handler, entry resolver, and response handler then
// register under a backend label with the aggregate dispatchers in the
// auth package.
//
// Server discovery follows DNS SRV records (_ldaps._tcp, then
// _ldap._tcp) when no explicit URLs are configured, matching how Active
// Directory clients locate domain controllers.
package ldap
