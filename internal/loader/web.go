package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

const maxWebDocumentBytes = 10 << 20 // 10 MiB

// WebLoader extracts readable text from HTML pages and plain-text files.
// It serves uploaded .html/.txt/.md blobs and remote URLs alike.
type WebLoader struct {
	http *http.Client
}

// NewWebLoader creates a web page loader.
func NewWebLoader(timeout time.Duration) *WebLoader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebLoader{http: &http.Client{Timeout: timeout}}
}

// Load fetches the source when needed and extracts its text as one page.
func (l *WebLoader) Load(ctx context.Context, src Source) (*Document, error) {
	content := src.Content
	if len(content) == 0 {
		fetched, err := l.fetch(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		content = fetched
	}

	title, text := extractText(content)
	if title == "" {
		title = src.Name
	}
	if title == "" {
		title = src.URL
	}

	return &Document{
		Title: title,
		Pages: []Page{{Content: text, Number: 1, Offset: 0}},
	}, nil
}

func (l *WebLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("web loader needs content or a url: %w", domain.ErrBadInput)
	}

	var body []byte
	err := withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request for %s: %w: %w", url, err, domain.ErrBadInput)
		}

		resp, err := l.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, domain.ErrParseFailed)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxWebDocumentBytes))
		if err != nil {
			return fmt.Errorf("read %s: %w", url, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// extractText parses HTML and collects visible text, skipping script and
// style subtrees. Plain text passes through the parser unchanged.
func extractText(content []byte) (title, text string) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", string(content)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript"):
			return
		case n.Type == html.ElementNode && n.Data == "title":
			if n.FirstChild != nil && title == "" {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case n.Type == html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		case n.Type == html.ElementNode && isBlockElement(n.Data):
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return title, sb.String()
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "section", "article":
		return true
	}
	return false
}
