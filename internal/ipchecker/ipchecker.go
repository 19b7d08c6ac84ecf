// Package ipchecker resolves the client address of an HTTP request and
// tells whether it belongs to the subnet trusted with internal endpoints.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

type IPChecker struct {
	trustedSubnet     *net.IPNet
	trustProxyHeaders bool
}

type Option func(checker *IPChecker)

// WithProxyHeaders makes ClientIP honour X-Real-IP and X-Forwarded-For. Enable it
// only behind a reverse proxy that overwrites those headers: clients can set
// them to any address.
func WithProxyHeaders(trust bool) Option {
	return func(checker *IPChecker) {
		checker.trustProxyHeaders = trust
	}
}

// New parses trustedSubnet in CIDR notation. An empty subnet yields a checker
// that trusts nobody.
func New(trustedSubnet string, opts ...Option) (*IPChecker, error) {
	checker := &IPChecker{}
	for _, opt := range opts {
		opt(checker)
	}
	if trustedSubnet == "" {
		return checker, nil
	}
	_, subnet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("parsing trusted subnet %q: %w", trustedSubnet, err)
	}
	checker.trustedSubnet = subnet

	return checker, nil
}

func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// ClientIP returns the connection's remote address. With proxy headers trusted
// it prefers X-Real-IP, then the first X-Forwarded-For entry.
func (checker *IPChecker) ClientIP(request *http.Request) (net.IP, error) {
	if checker.trustProxyHeaders {
		if ip := net.ParseIP(request.Header.Get("X-Real-IP")); ip != nil {
			return ip, nil
		}
		if forwarded := request.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip, nil
			}
		}
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("splitting remote address %q: %w", request.RemoteAddr, err)
	}

	return net.ParseIP(host), nil
}

// Trusted reports whether the request comes from the trusted subnet.
func (checker *IPChecker) Trusted(request *http.Request) bool {
	ip, err := checker.ClientIP(request)
	if err != nil {
		return false
	}
	return checker.Check(ip)
}
