// Package fetch implements the fetch-and-summarize tool used by pipeline
// stages: it retrieves a page (and a bounded set of its subpages), extracts
// the readable text, and condenses each page through the LLM provider.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/alexvand/supportcrew/pkg/models"
)

// Sentinel errors for fetch failures.
var (
	ErrUnreachable = errors.New("page unreachable")
	ErrBadStatus   = errors.New("page returned non-200 status")
)

const (
	defaultMaxPages = 5
	defaultMaxDepth = 2
	defaultDelay    = 500 * time.Millisecond
	userAgent       = "supportcrew/1.0 (+support pipeline)"

	summarizeSystem = "You are a helpful assistant that summarizes text while preserving important information."
)

// Paths and extensions never worth crawling for support answers.
var excludedPaths = []string{
	"/login", "/signup", "/logout", "/register", "/password-reset",
	"/admin", "/dashboard", "/wp-admin", "/manager",
	"/privacy", "/terms", "/cookie-policy", "/legal",
	"/api", "/graphql", "/rest",
	"/search", "/cart", "/checkout", "/contact",
}

var excludedExtensions = []string{".pdf", ".jpg", ".png", ".css", ".js", ".zip", ".mp4"}

// Summarizer is the subset of models.Provider the crawler needs.
type Summarizer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// Crawler fetches pages over HTTP and summarizes them via an LLM provider.
type Crawler struct {
	client   *http.Client
	provider Summarizer
	maxPages int
	maxDepth int
	delay    time.Duration
}

// Option configures a Crawler.
type Option func(*Crawler)

func WithLimits(maxPages, maxDepth int) Option {
	return func(c *Crawler) {
		c.maxPages = maxPages
		c.maxDepth = maxDepth
	}
}

func WithDelay(d time.Duration) Option {
	return func(c *Crawler) { c.delay = d }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) { c.client = client }
}

// NewCrawler creates a Crawler backed by the given provider for summarization.
func NewCrawler(provider Summarizer, opts ...Option) *Crawler {
	c := &Crawler{
		client:   &http.Client{Timeout: 20 * time.Second},
		provider: provider,
		maxPages: defaultMaxPages,
		maxDepth: defaultMaxDepth,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSummary crawls baseURL breadth-first up to the configured page and
// depth limits, summarizes each fetched page, and returns the summaries as
// one labeled block of text.
func (c *Crawler) FetchSummary(ctx context.Context, baseURL string) (string, error) {
	type queued struct {
		url   string
		depth int
	}

	visited := make(map[string]bool)
	pending := []queued{{url: baseURL, depth: 0}}
	var b strings.Builder
	fetched := 0

	for len(pending) > 0 && fetched < c.maxPages {
		if err := ctx.Err(); err != nil {
			return b.String(), err
		}

		next := pending[0]
		pending = pending[1:]
		if visited[next.url] || next.depth > c.maxDepth {
			continue
		}
		visited[next.url] = true

		slog.Info("crawling page", "url", next.url, "depth", next.depth)

		raw, err := c.fetchPage(ctx, next.url)
		if err != nil {
			// A dead subpage is not fatal; record it and keep going.
			fmt.Fprintf(&b, "%s: error fetching page: %v\n\n", next.url, err)
			fetched++
			continue
		}

		text := ExtractText(raw)
		summary, err := c.summarize(ctx, text)
		if err != nil {
			return b.String(), fmt.Errorf("summarizing %s: %w", next.url, err)
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", next.url, summary)
		fetched++

		if fetched < c.maxPages && next.depth < c.maxDepth {
			for _, link := range extractInternalLinks(baseURL, raw) {
				if !visited[link] {
					pending = append(pending, queued{url: link, depth: next.depth + 1})
				}
			}
		}

		if c.delay > 0 && len(pending) > 0 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return b.String(), ctx.Err()
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// PageText fetches a single page and returns its extracted text. Used by
// cmd/cataloggen, which does its own truncation and description generation.
func (c *Crawler) PageText(ctx context.Context, pageURL string) (string, error) {
	raw, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return ExtractText(raw), nil
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(body), nil
}

func (c *Crawler) summarize(ctx context.Context, text string) (string, error) {
	return c.provider.Complete(ctx, models.CompletionRequest{
		System: summarizeSystem,
		User:   "Summarize the following text in a concise manner, ensuring no important information is lost:\n\n" + text,
	})
}

// ExtractText strips markup from an HTML document and returns its visible
// text, with script and style contents removed.
func ExtractText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String())
}

// extractInternalLinks returns unique same-site links found in the document,
// excluding auth/legal/api paths and binary asset extensions.
func extractInternalLinks(baseURL, rawHTML string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				full := base.ResolveReference(ref)
				full.Fragment = ""
				s := full.String()
				if !strings.HasPrefix(s, baseURL) || seen[s] || !crawlable(s) {
					continue
				}
				seen[s] = true
				links = append(links, s)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links
}

func crawlable(link string) bool {
	for _, p := range excludedPaths {
		if strings.Contains(link, p) {
			return false
		}
	}
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(link, ext) {
			return false
		}
	}
	return true
}
