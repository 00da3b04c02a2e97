package tools

import "testing"

const ddgSample = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go <b>Documentation</b></a>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F">Official <b>Go</b> documentation.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://go.dev/tour/">A Tour of Go</a>
  <a class="result__snippet" href="https://go.dev/tour/">Interactive introduction.</a>
</div>`

func TestExtractDDGResults(t *testing.T) {
	results := extractDDGResults(ddgSample, 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Go Documentation" {
		t.Fatalf("unexpected title: %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/doc/" {
		t.Fatalf("expected unwrapped redirect URL, got %q", results[0].URL)
	}
	if results[0].Description != "Official Go documentation." {
		t.Fatalf("unexpected snippet: %q", results[0].Description)
	}
	if results[1].URL != "https://go.dev/tour/" {
		t.Fatalf("expected direct URL, got %q", results[1].URL)
	}
}

func TestExtractDDGResultsHonorsCount(t *testing.T) {
	results := extractDDGResults(ddgSample, 1)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestWebSearchProviderChainPrefersBrave(t *testing.T) {
	tool := NewWebSearchTool("key", nil)
	if len(tool.providers) != 2 || tool.providers[0].Name() != "brave" {
		t.Fatalf("expected brave first in provider chain")
	}

	keyless := NewWebSearchTool("", nil)
	if len(keyless.providers) != 1 || keyless.providers[0].Name() != "duckduckgo" {
		t.Fatalf("expected duckduckgo-only chain without a key")
	}
}
