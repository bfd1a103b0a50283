// Package webscrape implements the web_scraper tool: fetch a page and
// reduce it to its title, visible text and links.
package webscrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
	"github.com/HexSleeves/forager/internal/safety"
	"github.com/HexSleeves/forager/internal/tool"
)

// Name is the tool's dispatch key.
const Name = "web_scraper"

const description = "Fetch and extract content from web pages. Returns the page title, " +
	"visible text content and links. " +
	`Input: {"url": "https://example.com"}`

// Page is the tool output shown to the model.
type Page struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Links   []string `json:"links"`
	Summary Summary  `json:"summary"`
}

// Summary counts are computed over the full page, before links are capped.
type Summary struct {
	WordCount int `json:"word_count"`
	LinkCount int `json:"link_count"`
}

// FetchInfo is the tool metadata: how the page was obtained.
type FetchInfo struct {
	URL         string   `json:"url"`
	StatusCode  int      `json:"status_code"`
	ContentType string   `json:"content_type,omitempty"`
	Bytes       int      `json:"bytes"`
	FetchMs     float64  `json:"fetch_ms"`
	Features    []string `json:"features"`
}

// Scraper is safe for concurrent use.
type Scraper struct {
	client    *http.Client
	guard     *safety.Guard
	userAgent string
	timeout   time.Duration
	maxLinks  int
	logger    *log.Logger
}

// maxRedirects matches net/http's default policy.
const maxRedirects = 10

// New builds the tool. A nil httpClient uses http.DefaultClient; a nil
// logger discards. The scraper works on a copy of httpClient that vets every
// redirect hop and every dialed address against the guard.
func New(cfg config.ScraperConfig, httpClient *http.Client, logger *log.Logger) *Scraper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	defaults := config.DefaultConfig().Scraper
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	guard := safety.NewGuard(cfg)
	return &Scraper{
		client:    guardedClient(httpClient, guard),
		guard:     guard,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxLinks:  cfg.MaxLinks,
		logger:    logger,
	}
}

// guardedClient copies base with redirect and dial checks added.
func guardedClient(base *http.Client, guard *safety.Guard) *http.Client {
	c := *base
	next := base.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if _, err := guard.CheckURL(req.URL.String()); err != nil {
			return fmt.Errorf("redirect to %s: %w", req.URL.Redacted(), err)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}

	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	t, ok := rt.(*http.Transport)
	if !ok {
		// Custom round trippers dial on their own; only URLs are vetted.
		return &c
	}
	wasDefault := rt == http.DefaultTransport
	t = t.Clone()
	if t.DialContext == nil || wasDefault {
		d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Control: guard.Control}
		t.DialContext = d.DialContext
	} else {
		dial := t.DialContext
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if err := guard.CheckAddr(conn.RemoteAddr().String()); err != nil {
				conn.Close()
				return nil, err
			}
			return conn, nil
		}
	}
	c.Transport = t
	return &c
}

func (s *Scraper) Name() string        { return Name }
func (s *Scraper) Description() string { return description }

// Execute expects {"url": "<string>"}. Validation happens before any I/O.
func (s *Scraper) Execute(ctx context.Context, input json.RawMessage) (*tool.Result, error) {
	rawURL, err := parseInput(input)
	if err != nil {
		return nil, err
	}
	u, err := s.guard.CheckURL(rawURL)
	if err != nil {
		return nil, ferrors.InvalidInput(Name, "%v", err)
	}

	page, info, err := s.Scrape(ctx, u.String())
	if err != nil {
		return nil, ferrors.NewToolExecutionError(Name, err)
	}
	return tool.NewResultWithMetadata(page, info)
}

// Scrape fetches url and extracts it. The URL is used as given; callers
// outside Execute are responsible for vetting it.
func (s *Scraper) Scrape(ctx context.Context, url string) (*Page, *FetchInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(s.guard.LimitBody(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", url, err)
	}
	elapsed := time.Since(start)

	ex, err := extract(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", url, err)
	}

	content := strings.Join(ex.texts, "\n")
	links := ex.links
	if s.maxLinks > 0 && len(links) > s.maxLinks {
		links = links[:s.maxLinks]
	}
	if links == nil {
		links = []string{}
	}

	page := &Page{
		Title:   ex.title,
		Content: content,
		Links:   links,
		Summary: Summary{
			WordCount: len(strings.Fields(content)),
			LinkCount: len(ex.links),
		},
	}
	info := &FetchInfo{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       len(body),
		FetchMs:     float64(elapsed.Microseconds()) / 1000,
		Features:    []string{"html_parse", "text_extraction", "link_extraction"},
	}

	s.logger.Printf("[%s] fetched %s: %d bytes, %d words, %d links in %v",
		Name, url, len(body), page.Summary.WordCount, page.Summary.LinkCount, elapsed.Round(time.Millisecond))
	return page, info, nil
}

func parseInput(input json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil || fields == nil {
		return "", ferrors.InvalidInput(Name, "input must be a JSON object with a \"url\" field")
	}
	raw, ok := fields["url"]
	if !ok {
		return "", ferrors.InvalidInput(Name, "missing \"url\" field")
	}
	var u string
	if err := json.Unmarshal(raw, &u); err != nil {
		return "", ferrors.InvalidInput(Name, "\"url\" must be a string")
	}
	if strings.TrimSpace(u) == "" {
		return "", ferrors.InvalidInput(Name, "\"url\" is empty")
	}
	return u, nil
}
