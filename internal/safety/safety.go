// Package safety guards the outbound fetches tools make on the model's
// behalf: which URLs may be requested and how much of a response is read.
package safety

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/HexSleeves/forager/internal/config"
)

// Guard enforces URL and size constraints on tool fetches.
type Guard struct {
	allowedSchemes map[string]bool
	blockedHosts   []string
	maxBodyBytes   int64
}

func NewGuard(cfg config.ScraperConfig) *Guard {
	schemes := make(map[string]bool, len(cfg.AllowedSchemes))
	for _, s := range cfg.AllowedSchemes {
		schemes[strings.ToLower(strings.TrimSpace(s))] = true
	}
	if len(schemes) == 0 {
		schemes["http"] = true
		schemes["https"] = true
	}

	blocked := make([]string, 0, len(cfg.BlockedHosts))
	for _, h := range cfg.BlockedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			blocked = append(blocked, h)
		}
	}

	return &Guard{
		allowedSchemes: schemes,
		blockedHosts:   blocked,
		maxBodyBytes:   cfg.MaxBodyBytes,
	}
}

// CheckURL normalizes raw and verifies it may be fetched. A URL without a
// scheme is assumed to be https.
func (g *Guard) CheckURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !g.allowedSchemes[scheme] {
		return nil, fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL %q has no host", raw)
	}
	if err := g.CheckHost(u.Hostname()); err != nil {
		return nil, err
	}
	return u, nil
}

// CheckHost rejects a host that equals, or is a subdomain of, a blocked host.
// Blocked entries may also be IP addresses or CIDR ranges.
func (g *Guard) CheckHost(host string) error {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if ip := net.ParseIP(host); ip != nil {
		if err := g.CheckIP(ip); err != nil {
			return err
		}
	}
	for _, blocked := range g.blockedHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return fmt.Errorf("host %q is blocked", host)
		}
	}
	return nil
}

// CheckIP rejects an address matched by a blocked IP or CIDR entry.
func (g *Guard) CheckIP(ip net.IP) error {
	for _, blocked := range g.blockedHosts {
		if _, network, err := net.ParseCIDR(blocked); err == nil {
			if network.Contains(ip) {
				return fmt.Errorf("host %q is blocked (%s)", ip.String(), blocked)
			}
			continue
		}
		if b := net.ParseIP(blocked); b != nil && b.Equal(ip) {
			return fmt.Errorf("host %q is blocked", ip.String())
		}
	}
	return nil
}

// Control is a net.Dialer Control hook. It runs after name resolution, so a
// hostname that resolves into a blocked range is refused before connecting.
func (g *Guard) Control(network, address string, _ syscall.RawConn) error {
	return g.CheckAddr(address)
}

// CheckAddr checks the IP of a resolved "host:port" address.
func (g *Guard) CheckAddr(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	return g.CheckIP(ip)
}

// LimitBody caps how much of r is read. A non-positive limit reads all of it.
func (g *Guard) LimitBody(r io.Reader) io.Reader {
	if g.maxBodyBytes <= 0 {
		return r
	}
	return io.LimitReader(r, g.maxBodyBytes)
}
