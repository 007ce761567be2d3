// Package websearch is the external web-search collaborator: it queries the
// DuckDuckGo HTML endpoint, weights results by source domain, and
// deduplicates them. It supplements retrieval context when the corpus alone
// gives a low-confidence answer; it never affects conversation state.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Unavailable is the user-visible note embedded in context when search
// fails after retries.
const Unavailable = "Поиск в интернете временно недоступен."

const (
	searchTimeout = 10 * time.Second
	maxBodyBytes  = 1 << 20

	// Two attempts with a fixed pause between them; failures beyond that
	// degrade to the Unavailable note instead of aborting the turn.
	attempts     = 2
	retryBackoff = 500 * time.Millisecond

	// fingerprintLen is the normalized-snippet prefix length used for
	// dedup: mirrors and re-posts share the opening sentence.
	fingerprintLen = 80
)

// Result is a single weighted search result.
type Result struct {
	Title string
	URL   string
	Body  string
}

// domainWeights favours official and legal-reference sources. Domains not
// listed get weight 1; denied domains are dropped entirely.
var domainWeights = map[string]int{
	"gov.ru":            10,
	"gosuslugi.ru":      9,
	"minstroyrf.gov.ru": 9,
	"vsrf.ru":           8,
	"consultant.ru":     7,
	"garant.ru":         7,
	"rg.ru":             5,
	"dom.gosuslugi.ru":  9,
	"gji.ru":            6,
}

// deniedDomains excludes forum and Q&A content whose legal accuracy cannot
// be relied on.
var deniedDomains = []string{
	"otvet.mail.ru",
	"answers.mail.ru",
	"pikabu.ru",
	"irecommend.ru",
	"forum",
	"yandex.ru/q",
}

// Client performs web searches over the DuckDuckGo HTML interface. The zero
// http.Client default is replaced with a bounded timeout.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// New creates a search Client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: searchTimeout},
		endpoint:   "https://html.duckduckgo.com/html/",
	}
}

// NewWithEndpoint creates a Client against a custom endpoint. Used by tests.
func NewWithEndpoint(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: searchTimeout}
	}
	return &Client{httpClient: httpClient, endpoint: endpoint}
}

// Search returns up to maxResults weighted, deduplicated results. It makes
// two attempts with a fixed backoff before reporting failure.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		results, err := c.searchOnce(ctx, query, maxResults)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("web search failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) searchOnce(ctx context.Context, query string, maxResults int) ([]Result, error) {
	searchURL := c.endpoint + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	parsed, err := parseResults(string(body))
	if err != nil {
		return nil, err
	}
	return Filter(parsed, maxResults), nil
}

// Filter applies the deny-list, deduplicates by content-prefix fingerprint,
// and orders by domain weight (stable within equal weights), truncating to
// maxResults.
func Filter(results []Result, maxResults int) []Result {
	seen := make(map[string]bool)
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if denied(r.URL) {
			continue
		}
		fp := fingerprint(r.Body)
		if fp != "" && seen[fp] {
			continue
		}
		seen[fp] = true
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return weight(kept[i].URL) > weight(kept[j].URL)
	})

	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}
	return kept
}

func weight(rawURL string) int {
	host := hostOf(rawURL)
	for domain, w := range domainWeights {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return w
		}
	}
	return 1
}

func denied(rawURL string) bool {
	lowered := strings.ToLower(rawURL)
	for _, d := range deniedDomains {
		if strings.Contains(lowered, d) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}

// fingerprint normalizes a snippet and takes its prefix, so near-identical
// snippets collapse to one entry.
func fingerprint(body string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(body), " "))
	runes := []rune(normalized)
	if len(runes) > fingerprintLen {
		runes = runes[:fingerprintLen]
	}
	return string(runes)
}

// parseResults extracts results from the DuckDuckGo HTML page. Result
// blocks are divs with class "result results_links"; within each, the link
// carries class "result__a" and the snippet "result__snippet".
func parseResults(htmlContent string) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if r := extractResult(n); r.URL != "" && r.Title != "" {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				r.URL = cleanRedirect(attr(n, "href"))
				r.Title = textContent(n)
			case hasClass(n, "result__snippet"):
				r.Body = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return r
}

// cleanRedirect unwraps DuckDuckGo's /l/?uddg= redirect URLs.
func cleanRedirect(rawURL string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(rawURL, prefix) {
		return rawURL
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil {
		return rawURL
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
