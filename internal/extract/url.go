package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"golang.org/x/net/html"
)

const (
	fetchTimeout = 10 * time.Second
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// maxFetchBytes caps how much of a remote page is read into memory.
	maxFetchBytes = 10 << 20
)

var contentClassPattern = regexp.MustCompile(`(?i)content|main|body`)

// URLExtractor fetches a web page and extracts its title and readable text.
type URLExtractor struct {
	client   *http.Client
	maxBytes int64
}

func NewURLExtractor() *URLExtractor {
	return &URLExtractor{
		client:   &http.Client{Timeout: fetchTimeout},
		maxBytes: maxFetchBytes,
	}
}

// ValidURL reports whether s parses as an absolute http(s) URL.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FromURL fetches the page and returns its title and tag-stripped text.
// Failures come back as structured extraction errors, never a panic.
func (e *URLExtractor) FromURL(ctx context.Context, rawURL string) (*Extracted, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !ValidURL(rawURL) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("invalid URL: %s", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction,
			fmt.Sprintf("failed to fetch URL: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to read response body", err)
	}
	if int64(len(body)) > e.maxBytes {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction,
			fmt.Sprintf("page exceeds %d byte limit", e.maxBytes))
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to parse HTML", err)
	}

	page := parsePage(doc)

	title := page.title
	if title == "" {
		title = page.ogTitle
	}
	if title == "" {
		title = page.h1
	}
	if title == "" {
		title = parsed.Host
	}

	text := page.mainText
	if strings.TrimSpace(text) == "" {
		text = page.bodyText
	}

	return &Extracted{
		Title:   strings.TrimSpace(title),
		Content: collapseLines(text),
	}, nil
}

type parsedPage struct {
	title    string
	ogTitle  string
	h1       string
	mainText string
	bodyText string
}

func parsePage(doc *html.Node) *parsedPage {
	page := &parsedPage{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if page.title == "" {
					page.title = textContent(n)
				}
			case "meta":
				if attr(n, "property") == "og:title" && page.ogTitle == "" {
					page.ogTitle = attr(n, "content")
				}
			case "h1":
				if page.h1 == "" {
					page.h1 = textContent(n)
				}
			case "main", "article":
				if page.mainText == "" {
					page.mainText = textContent(n)
				}
			case "div":
				if page.mainText == "" && contentClassPattern.MatchString(attr(n, "class")) {
					page.mainText = textContent(n)
				}
			case "body":
				page.bodyText = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page
}

// textContent concatenates all text nodes under n, skipping script and style
// subtrees, with newlines between block-ish siblings.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapseLines strips empty lines and rejoins, matching the cleanup the
// rest of the pipeline expects before normalization.
func collapseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
