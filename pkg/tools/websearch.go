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
	"time"

	"github.com/querypilot/agent"
)

const (
	defaultSearchCount  = 5
	maxSearchCount      = 10
	braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"
	searchUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// SearchProvider is one web search backend.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

type SearchResult struct {
	Title       string
	URL         string
	Description string
}

// WebSearchTool queries its providers in order and returns the first
// provider's results, falling through on failure.
type WebSearchTool struct {
	providers []SearchProvider
	logger    *slog.Logger
}

// NewWebSearchTool builds the provider chain. Brave is preferred when an
// API key is configured; the keyless DuckDuckGo HTML endpoint is the
// fallback.
func NewWebSearchTool(braveAPIKey string, logger *slog.Logger) *WebSearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	var providers []SearchProvider
	if braveAPIKey != "" {
		providers = append(providers, &braveProvider{
			apiKey: braveAPIKey,
			client: &http.Client{Timeout: 30 * time.Second},
		})
	}
	providers = append(providers, &duckDuckGoProvider{
		client: &http.Client{Timeout: 30 * time.Second},
	})
	return &WebSearchTool{providers: providers, logger: logger}
}

func (t *WebSearchTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "web_search",
		Description: "Searches the web and returns result titles, URLs, and snippets.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Number of results to return (max 10)",
				},
			},
			"required":             []any{"query"},
			"additionalProperties": false,
		},
	}
}

func (t *WebSearchTool) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	query, _ := req.Arguments["query"].(string)
	count := defaultSearchCount
	if v, ok := req.Arguments["count"].(float64); ok && v > 0 {
		count = int(v)
	}
	if count > maxSearchCount {
		count = maxSearchCount
	}

	var lastErr error
	for _, provider := range t.providers {
		results, err := provider.Search(ctx, query, count)
		if err != nil {
			t.logger.Warn("search provider failed", "provider", provider.Name(), "error", err)
			lastErr = err
			continue
		}
		if len(results) == 0 {
			continue
		}
		return agent.ToolResponse{
			Content:  formatSearchResults(results),
			Metadata: map[string]string{"provider": provider.Name(), "results": fmt.Sprintf("%d", len(results))},
		}, nil
	}
	if lastErr != nil {
		return agent.ToolResponse{}, fmt.Errorf("all search providers failed: %w", lastErr)
	}
	return agent.ToolResponse{Content: fmt.Sprintf("No web results for %q.", query)}, nil
}

func formatSearchResults(results []SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s\n   %s", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "\n   %s", r.Description)
		}
	}
	return b.String()
}

type braveProvider struct {
	apiKey string
	client *http.Client
}

func (p *braveProvider) Name() string { return "brave" }

func (p *braveProvider) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveSearchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave API returned %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return results, nil
}

type duckDuckGoProvider struct {
	client *http.Client
}

func (p *duckDuckGoProvider) Name() string { return "duckduckgo" }

func (p *duckDuckGoProvider) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %d", resp.StatusCode)
	}
	return extractDDGResults(string(body), count), nil
}

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func extractDDGResults(html string, count int) []SearchResult {
	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, count+5)
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, count+5)

	var results []SearchResult
	for i := 0; i < len(linkMatches) && i < count; i++ {
		result := SearchResult{
			Title: strings.TrimSpace(htmlTagRe.ReplaceAllString(linkMatches[i][2], "")),
			URL:   unwrapDDGRedirect(linkMatches[i][1]),
		}
		if i < len(snippetMatches) {
			result.Description = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippetMatches[i][1], ""))
		}
		results = append(results, result)
	}
	return results
}

// unwrapDDGRedirect extracts the destination from DuckDuckGo's uddg
// redirect wrapper.
func unwrapDDGRedirect(rawURL string) string {
	if !strings.Contains(rawURL, "uddg=") {
		return rawURL
	}
	unescaped, err := url.QueryUnescape(rawURL)
	if err != nil {
		return rawURL
	}
	idx := strings.Index(unescaped, "uddg=")
	if idx == -1 {
		return rawURL
	}
	target := unescaped[idx+5:]
	if amp := strings.Index(target, "&"); amp != -1 {
		target = target[:amp]
	}
	return target
}

var _ agent.Tool = (*WebSearchTool)(nil)
