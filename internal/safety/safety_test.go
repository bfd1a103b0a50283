package safety

import (
	"io"
	"strings"
	"testing"

	"github.com/HexSleeves/forager/internal/config"
)

func TestCheckURL_AddsHTTPSWhenSchemeMissing(t *testing.T) {
	g := NewGuard(config.DefaultConfig().Scraper)
	u, err := g.CheckURL("example.com/path?q=1")
	if err != nil {
		t.Fatalf("CheckURL() unexpected error: %v", err)
	}
	if u.String() != "https://example.com/path?q=1" {
		t.Errorf("CheckURL() = %q", u.String())
	}
}

func TestCheckURL_Schemes(t *testing.T) {
	g := NewGuard(config.DefaultConfig().Scraper)

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com", false},
		{"HTTPS://Example.com", false},
		{"ftp://example.com/file", true},
		{"file:///etc/passwd", true},
		{"", true},
		{"   ", true},
		{"https://", true},
	}
	for _, tt := range tests {
		_, err := g.CheckURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestCheckURL_CustomSchemes(t *testing.T) {
	g := NewGuard(config.ScraperConfig{AllowedSchemes: []string{"https"}})
	if _, err := g.CheckURL("http://example.com"); err == nil {
		t.Error("expected http to be rejected when only https is allowed")
	}
	if _, err := g.CheckURL("https://example.com"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckHost_Blocked(t *testing.T) {
	g := NewGuard(config.ScraperConfig{
		BlockedHosts: []string{"internal.corp", "LOCALHOST", "10.0.0.0/8"},
	})

	tests := []struct {
		host    string
		blocked bool
	}{
		{"internal.corp", true},
		{"wiki.internal.corp", true},
		{"notinternal.corp", false},
		{"localhost", true},
		{"localhost.", true},
		{"10.1.2.3", true},
		{"11.1.2.3", false},
		{"example.com", false},
	}
	for _, tt := range tests {
		err := g.CheckHost(tt.host)
		if (err != nil) != tt.blocked {
			t.Errorf("CheckHost(%q) error = %v, blocked %v", tt.host, err, tt.blocked)
		}
	}

	if _, err := g.CheckURL("https://wiki.internal.corp/page"); err == nil {
		t.Error("expected blocked host to fail CheckURL")
	}
}

func TestCheckAddr_ResolvedIPs(t *testing.T) {
	g := NewGuard(config.ScraperConfig{
		BlockedHosts: []string{"10.0.0.0/8", "192.168.1.7", "fd00::/8", "example.com"},
	})

	tests := []struct {
		addr    string
		blocked bool
	}{
		{"10.9.8.7:443", true},
		{"192.168.1.7:80", true},
		{"192.168.1.8:80", false},
		{"[fd00::1]:80", true},
		{"[fd00::1%eth0]:80", true},
		{"[2001:db8::1]:80", false},
		{"93.184.216.34:443", false},
		{"not-an-ip:80", false},
	}
	for _, tt := range tests {
		err := g.CheckAddr(tt.addr)
		if (err != nil) != tt.blocked {
			t.Errorf("CheckAddr(%q) error = %v, blocked %v", tt.addr, err, tt.blocked)
		}
		if err := g.Control("tcp", tt.addr, nil); (err != nil) != tt.blocked {
			t.Errorf("Control(%q) error = %v, blocked %v", tt.addr, err, tt.blocked)
		}
	}
}

func TestLimitBody(t *testing.T) {
	g := NewGuard(config.ScraperConfig{MaxBodyBytes: 4})
	data, err := io.ReadAll(g.LimitBody(strings.NewReader("0123456789")))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0123" {
		t.Errorf("LimitBody read %q, want %q", data, "0123")
	}

	unlimited := NewGuard(config.ScraperConfig{})
	data, _ = io.ReadAll(unlimited.LimitBody(strings.NewReader("0123456789")))
	if len(data) != 10 {
		t.Errorf("expected unlimited read, got %d bytes", len(data))
	}
}
