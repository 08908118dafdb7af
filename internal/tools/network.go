package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultSearchURL    = "https://html.duckduckgo.com/html/"
	defaultWikipediaURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"
	maxSearchResults    = 5
	maxResponseBytes    = 4 << 20
	userAgent           = "AutoAgent/1.0"
)

type webTools struct {
	client       *http.Client
	searchURL    string
	wikipediaURL string
}

func networkTools(deps Deps) []Tool {
	w := &webTools{
		client:       deps.HTTPClient,
		searchURL:    deps.SearchURL,
		wikipediaURL: deps.WikipediaURL,
	}
	if w.client == nil {
		w.client = http.DefaultClient
	}
	if w.searchURL == "" {
		w.searchURL = defaultSearchURL
	}
	if w.wikipediaURL == "" {
		w.wikipediaURL = defaultWikipediaURL
	}
	return []Tool{
		{Name: "url_fetch", Description: "Fetch a URL and return the body (truncated).", Run: w.fetch},
		{Name: "http_status_checker", Description: "Report the HTTP status code of a URL.", Run: w.status},
		{Name: "web_search", Description: "Search the web and list result titles.", Run: w.search},
		{Name: "web_scrape", Description: "Fetch a page and return its visible text (truncated).", Run: w.scrape},
		{Name: "wikipedia_search", Description: "Summary of the Wikipedia article for a topic.", Run: w.wikipedia},
	}
}

// get 发起 GET 请求并读取响应体，非 2xx 状态视为失败。
func (w *webTools) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

func (w *webTools) fetch(ctx context.Context, arg string) (string, error) {
	body, err := w.get(ctx, arg)
	if err != nil {
		return "", fmt.Errorf("url fetch: %w", err)
	}
	return Truncate(string(body)), nil
}

func (w *webTools) status(ctx context.Context, arg string) (string, error) {
	target := strings.TrimSpace(arg)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("http status: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http status: %w", err)
	}
	_ = resp.Body.Close()
	return fmt.Sprintf("HTTP status for %s: %d", target, resp.StatusCode), nil
}

func (w *webTools) search(ctx context.Context, arg string) (string, error) {
	query := strings.TrimSpace(arg)
	if query == "" {
		return "", fmt.Errorf("web search: query is empty")
	}
	body, err := w.get(ctx, w.searchURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return "", fmt.Errorf("web search for %q: %w", query, err)
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	titles := collectResultTitles(doc, nil)
	if len(titles) == 0 {
		return fmt.Sprintf("Web search for '%s' completed. No results found.", query), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Web search for '%s':", query)
	for i, title := range titles {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, title)
	}
	return sb.String(), nil
}

// collectResultTitles 收集 class 含 result__a 的链接文本。
func collectResultTitles(n *html.Node, titles []string) []string {
	if len(titles) >= maxSearchResults {
		return titles
	}
	if n.Type == html.ElementNode && n.DataAtom == atom.A && hasClass(n, "result__a") {
		if text := visibleText(n); text != "" {
			return append(titles, text)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		titles = collectResultTitles(c, titles)
	}
	return titles
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, field := range strings.Fields(attr.Val) {
				if field == class {
					return true
				}
			}
		}
	}
	return false
}

// visibleText 返回节点下去掉脚本与样式后的文本，片段之间以单个空格连接。
func visibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head:
				return
			}
		}
		if node.Type == html.TextNode {
			if text := strings.Join(strings.Fields(node.Data), " "); text != "" {
				parts = append(parts, text)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func (w *webTools) scrape(ctx context.Context, arg string) (string, error) {
	body, err := w.get(ctx, arg)
	if err != nil {
		return "", fmt.Errorf("web scrape: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("web scrape: %w", err)
	}
	return Truncate(visibleText(doc)), nil
}

type wikipediaSummary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

func (w *webTools) wikipedia(ctx context.Context, arg string) (string, error) {
	topic := strings.TrimSpace(arg)
	if topic == "" {
		return "", fmt.Errorf("wikipedia: topic is empty")
	}
	body, err := w.get(ctx, w.wikipediaURL+url.PathEscape(strings.ReplaceAll(topic, " ", "_")))
	if err != nil {
		return "", fmt.Errorf("wikipedia: %w", err)
	}
	var summary wikipediaSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return "", fmt.Errorf("wikipedia: decode summary: %w", err)
	}
	if strings.TrimSpace(summary.Extract) == "" {
		return "", fmt.Errorf("wikipedia: no summary for %q", topic)
	}
	return Truncate(summary.Extract), nil
}
