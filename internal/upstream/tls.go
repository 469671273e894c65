package upstream

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
)

// ParseURL splits an ldap_url config value (ldap://host[:port] or
// ldaps://host[:port]) into the dial network address and whether TLS
// is required.
func ParseURL(raw string) (addr string, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("upstream: invalid ldap_url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ldaps":
		useTLS = true
	case "ldap":
		useTLS = false
	default:
		return "", false, fmt.Errorf("upstream: unsupported ldap_url scheme %q", u.Scheme)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if useTLS {
			port = "636"
		} else {
			port = "389"
		}
	}
	return host + ":" + port, useTLS, nil
}

// BuildTLSConfig loads caBundlePath (a PEM file) and returns a
// *tls.Config that trusts only that bundle and performs mandatory
// hostname verification against serverName.
func BuildTLSConfig(caBundlePath, serverName string) (*tls.Config, error) {
	pool := x509.NewCertPool()
	pem, err := os.ReadFile(caBundlePath)
	if err != nil {
		return nil, fmt.Errorf("upstream: reading ldap_ca: %w", err)
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("upstream: ldap_ca contains no usable certificates")
	}
	return &tls.Config{
		RootCAs:            pool,
		ServerName:         serverName,
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
	}, nil
}
