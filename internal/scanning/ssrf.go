package scanning

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// lookupTimeout bounds the DNS lookup made before each dial
const lookupTimeout = 5 * time.Second

// privateRanges is parsed once at init for the dial checks
var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"127.0.0.0/8",    // IPv4 loopback
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"169.254.0.0/16", // link-local / cloud metadata
		"100.64.0.0/10",  // carrier-grade NAT
		"0.0.0.0/8",      // unspecified
		"::1/128",        // IPv6 loopback
		"fc00::/7",       // IPv6 unique local
		"fe80::/10",      // IPv6 link-local
	} {
		_, ipNet, _ := net.ParseCIDR(cidr)
		privateRanges = append(privateRanges, ipNet)
	}
}

// IsPrivateIP reports whether ip is loopback, private, link-local or
// unspecified
func IsPrivateIP(ip net.IP) bool {
	if ip.IsUnspecified() || ip.IsLoopback() {
		return true
	}
	for _, cidr := range privateRanges {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// resolvePublicIP resolves host and returns the first public address
func resolvePublicIP(ctx context.Context, host string) (net.IP, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("empty hostname")
	}
	if idx := strings.IndexByte(host, '%'); idx != -1 {
		host = host[:idx]
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return nil, fmt.Errorf("host %q is private IP %s", host, ip)
		}
		return ip, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", host, err)
	}
	for _, addr := range addrs {
		if addr.IP != nil && !IsPrivateIP(addr.IP) {
			return addr.IP, nil
		}
	}
	return nil, fmt.Errorf("hostname %q resolves only to private addresses", host)
}

// safeDialContext dials the first public address of addr's host, pinning the
// connection to the address that was checked
func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("blocked image fetch: invalid address %s", addr)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	ip, err := resolvePublicIP(lookupCtx, host)
	if err != nil {
		return nil, fmt.Errorf("blocked image fetch: %w", err)
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// NewSafeTransport returns a transport that refuses private and internal
// destinations, for fetching images by URL
func NewSafeTransport() *http.Transport {
	transport := (&http.Transport{}).Clone()
	if base, ok := http.DefaultTransport.(*http.Transport); ok && base != nil {
		transport = base.Clone()
	}
	transport.Proxy = nil
	transport.DialContext = safeDialContext
	return transport
}
