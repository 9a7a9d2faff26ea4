package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"finagent/internal/agent"
	"finagent/internal/config"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	bravesearch "github.com/cnosuke/go-brave-search"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxFetchBytes  = 100 * 1024
	maxSearchCount = 20
	userAgent      = "finagent/1.0"
)

var blankLinesRe = regexp.MustCompile(`\r?\n{2,}`)

type SearchResult struct {
	Title       string
	URL         string
	Description string
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

type braveSearcher struct {
	client *bravesearch.Client
}

func NewBraveSearcher(apiKey string) (Searcher, error) {
	client, err := bravesearch.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating brave client: %w", err)
	}
	return &braveSearcher{client: client}, nil
}

func (b *braveSearcher) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	resp, err := b.client.WebSearch(ctx, query, &bravesearch.WebSearchParams{Count: count})
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var out []SearchResult
	for _, r := range resp.GetWebResults() {
		out = append(out, SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return out, nil
}

// Web is the toolkit backing the web search agent.
type Web struct {
	searcher Searcher
	http     *http.Client
	count    int
}

func NewWeb(searcher Searcher, cfg config.WebConfig) *Web {
	return &Web{
		searcher: searcher,
		http: &http.Client{
			Timeout:   cfg.FetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		count: cfg.SearchCount,
	}
}

func (w *Web) Name() string { return "web" }

func (w *Web) Tools() []agent.Tool {
	return []agent.Tool{&webSearch{w}, &fetchURL{w}}
}

type webSearch struct{ w *Web }

func (t *webSearch) Name() string { return "web_search" }
func (t *webSearch) Description() string {
	return "Search the web for a query. Returns the title, URL and snippet of each result."
}

func (t *webSearch) InputSchema() any {
	return objectSchema(map[string]any{
		"query": stringProp("The search query"),
		"count": map[string]any{
			"type":        "integer",
			"description": "Number of results to return (1-20); 0 uses the default",
		},
	}, "query", "count")
}

func (t *webSearch) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing web_search input: %w", err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	count := args.Count
	if count <= 0 {
		count = t.w.count
	}
	count = min(max(count, 1), maxSearchCount)

	slog.Debug("web: searching", "query", query, "count", count)

	results, err := t.w.searcher.Search(ctx, query, count)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", r.Title, r.URL, r.Description)
	}

	slog.Debug("web: search done", "query", query, "results", len(results))
	return truncate(b.String()), nil
}

type fetchURL struct{ w *Web }

func (t *fetchURL) Name() string { return "fetch_url" }
func (t *fetchURL) Description() string {
	return "Fetch a web page and return its main content as markdown."
}

func (t *fetchURL) InputSchema() any {
	return objectSchema(map[string]any{
		"url": stringProp("Absolute http(s) URL of the page"),
	}, "url")
}

func (t *fetchURL) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing fetch_url input: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url: %q", args.URL)
	}

	slog.Debug("web: fetching", "url", u.String())

	doc, err := t.w.fetch(ctx, u.String())
	if err != nil {
		return "", err
	}

	markdown, err := htmltomarkdown.ConvertString(
		mainContent(doc),
		converter.WithDomain(u.Scheme+"://"+u.Host),
	)
	if err != nil {
		return "", fmt.Errorf("converting to markdown: %w", err)
	}
	text := cleanMarkdown(markdown)
	if title := strings.TrimSpace(doc.Find("head title").Text()); title != "" {
		text = "# " + title + "\n\n" + text
	}

	slog.Debug("web: fetch done", "url", u.String(), "bytes", len(text))
	return truncate(text), nil
}

func (w *Web) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// mainContent strips page chrome and returns the HTML of the most specific
// content container found.
func mainContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, noscript").Remove()
	for _, selector := range []string{"main", "article", "#content, #main", "body"} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if html, err := sel.Html(); err == nil && strings.TrimSpace(html) != "" {
			return html
		}
	}
	html, _ := doc.Html()
	return html
}

func cleanMarkdown(s string) string {
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
