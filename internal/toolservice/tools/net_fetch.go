package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/vanshchauhan21/forge/internal/net/ssrf"
	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// NetFetchInput is the JSON shape of net_fetch's arguments.
type NetFetchInput struct {
	URL string `json:"url" jsonschema:"required,description=URL to fetch via HTTP GET."`
	Raw bool   `json:"raw,omitempty" jsonschema:"description=Return raw HTML instead of converting to Markdown."`
}

// NetFetch implements the net_fetch tool (spec §4.3): performs an HTTP GET
// and, unless Raw is set, extracts readable content with go-readability
// and renders it as Markdown. Grounded on internal/tools/websearch's
// WebFetchTool shape, rewired onto go-readability per the dependency plan.
type NetFetch struct {
	Client   *http.Client
	policy   ssrf.Policy
	skipSSRF bool
}

// NewNetFetch returns the net_fetch tool, with its SSRF policy read from
// FORGE_NET_FETCH_* environment overrides (see ssrf.PolicyFromEnv).
func NewNetFetch() *NetFetch {
	return &NetFetch{Client: &http.Client{Timeout: 30 * time.Second}, policy: ssrf.PolicyFromEnv()}
}

// NewNetFetchForTesting returns a net_fetch tool that skips SSRF host
// validation, matching internal/tools/websearch's
// NewContentExtractorForTesting escape hatch for hitting httptest servers.
func NewNetFetchForTesting() *NetFetch {
	return &NetFetch{Client: &http.Client{Timeout: 30 * time.Second}, skipSSRF: true}
}

func (t *NetFetch) Name() string        { return "net_fetch" }
func (t *NetFetch) Description() string { return "Fetch a URL; by default converts HTML to Markdown." }
func (t *NetFetch) Schema() json.RawMessage { return mustSchema(NetFetchInput{}) }

func (t *NetFetch) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in NetFetchInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errResult("url must be an absolute http(s) URL: %q", in.URL), nil
	}
	if !t.skipSSRF {
		if err := ssrf.ValidateHostname(parsed.Hostname(), t.policy); err != nil {
			return errResult("refusing to fetch %s: %v", in.URL, err), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return errResult("failed to build request for %s: %v", in.URL, err), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ForgeFetch/1.0)")
	resp, err := t.Client.Do(req)
	if err != nil {
		return errResult("fetch failed for %s: %v", in.URL, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return errResult("failed to read response body from %s: %v", in.URL, err), nil
	}
	if resp.StatusCode >= 400 {
		return errResult("fetch of %s returned status %d", in.URL, resp.StatusCode), nil
	}

	if in.Raw {
		return okResult(string(body)), nil
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return errResult("failed to extract readable content from %s: %v", in.URL, err), nil
	}

	md, err := htmlToMarkdown(article.Content)
	if err != nil {
		return errResult("failed to render markdown for %s: %v", in.URL, err), nil
	}

	header := fmt.Sprintf("# %s\n\n", article.Title)
	if article.Title == "" {
		header = ""
	}
	return okResult(header + md), nil
}

// htmlToMarkdown renders a readability-extracted fragment as Markdown. It
// handles the block/inline elements readability typically emits
// (paragraphs, headings, links, lists, emphasis) and falls back to plain
// text for anything else.
func htmlToMarkdown(fragment string) (string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	renderMarkdownNode(&sb, doc)
	return strings.TrimSpace(collapseBlankLines(sb.String())), nil
}

func renderMarkdownNode(sb *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	if n.Type != html.ElementNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderMarkdownNode(sb, c)
		}
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		sb.WriteString("\n" + strings.Repeat("#", level) + " ")
		renderChildren(sb, n)
		sb.WriteString("\n\n")
	case "p", "div":
		renderChildren(sb, n)
		sb.WriteString("\n\n")
	case "br":
		sb.WriteString("\n")
	case "a":
		href := attr(n, "href")
		sb.WriteString("[")
		renderChildren(sb, n)
		sb.WriteString("](" + href + ")")
	case "strong", "b":
		sb.WriteString("**")
		renderChildren(sb, n)
		sb.WriteString("**")
	case "em", "i":
		sb.WriteString("_")
		renderChildren(sb, n)
		sb.WriteString("_")
	case "li":
		sb.WriteString("- ")
		renderChildren(sb, n)
		sb.WriteString("\n")
	case "ul", "ol":
		sb.WriteString("\n")
		renderChildren(sb, n)
		sb.WriteString("\n")
	case "script", "style":
		// skip entirely
	default:
		renderChildren(sb, n)
	}
}

func renderChildren(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdownNode(sb, c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
