// Package docintel is a client for a document analysis service that extracts
// text from PDFs and images via asynchronous analyze operations.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

const (
	// ModelLayout extracts text with layout structure (paragraphs, tables, headings).
	ModelLayout = "prebuilt-layout"
	// ModelRead extracts plain text only, suitable for scanned images.
	ModelRead = "prebuilt-read"

	apiVersion      = "2023-07-31"
	defaultPollWait = 2 * time.Second
	maxPolls        = 60
)

// Page is one page of analyzed output.
type Page struct {
	Number  int
	Content string
	Offset  int
}

// Client calls the document analysis REST API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	pollWait time.Duration
	logger   *zap.Logger
}

// Config holds the document analysis service settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New creates a document analysis client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		pollWait: defaultPollWait,
		logger:   cfg.Logger,
	}
}

// AnalyzeURL submits a document by URL and waits for the extracted pages.
// model is ModelLayout or ModelRead.
func (c *Client) AnalyzeURL(ctx context.Context, model, documentURL string) ([]Page, error) {
	body, err := json.Marshal(map[string]string{"urlSource": documentURL})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	opLocation, err := c.submit(ctx, model, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return c.poll(ctx, opLocation)
}

// AnalyzeBytes submits raw document content and waits for the extracted pages.
func (c *Client) AnalyzeBytes(ctx context.Context, model string, content []byte) ([]Page, error) {
	opLocation, err := c.submit(ctx, model, "application/octet-stream", bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	return c.poll(ctx, opLocation)
}

func (c *Client) submit(ctx context.Context, model, contentType string, body io.Reader) (string, error) {
	url := fmt.Sprintf(
		"%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, model, apiVersion,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit analyze: %w: %w", err, domain.ErrAnalysisProviderError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", analysisError(resp)
	}

	opLocation := resp.Header.Get("Operation-Location")
	if opLocation == "" {
		return "", fmt.Errorf("analyze response missing Operation-Location: %w", domain.ErrParseFailed)
	}

	return opLocation, nil
}

func (c *Client) poll(ctx context.Context, opLocation string) ([]Page, error) {
	for attempt := 0; attempt < maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollWait):
		}

		result, status, err := c.fetchResult(ctx, opLocation)
		if err != nil {
			return nil, err
		}

		switch status {
		case "succeeded":
			return pagesFromResult(result), nil
		case "failed":
			return nil, fmt.Errorf("analysis failed: %w", domain.ErrParseFailed)
		case "running", "notStarted":
			if c.logger != nil {
				c.logger.Debug("analysis in progress", zap.Int("attempt", attempt+1))
			}
		default:
			return nil, fmt.Errorf("unexpected analysis status %q: %w", status, domain.ErrParseFailed)
		}
	}

	return nil, fmt.Errorf("analysis did not complete after %d polls: %w", maxPolls, domain.ErrAnalysisProviderError)
}

type analyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content    string `json:"content"`
		Paragraphs []struct {
			Content string `json:"content"`
			Spans   []struct {
				Offset int `json:"offset"`
				Length int `json:"length"`
			} `json:"spans"`
		} `json:"paragraphs"`
		Pages []struct {
			PageNumber int `json:"pageNumber"`
			Spans      []struct {
				Offset int `json:"offset"`
				Length int `json:"length"`
			} `json:"spans"`
		} `json:"pages"`
	} `json:"analyzeResult"`
}

func (c *Client) fetchResult(ctx context.Context, opLocation string) (*analyzeResult, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opLocation, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build result request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch analysis result: %w: %w", err, domain.ErrAnalysisProviderError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", analysisError(resp)
	}

	var result analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("decode analysis result: %w: %w", err, domain.ErrParseFailed)
	}

	return &result, result.Status, nil
}

// pagesFromResult slices the full content into per-page text using page spans.
// A result without page spans becomes a single page.
func pagesFromResult(result *analyzeResult) []Page {
	content := result.AnalyzeResult.Content

	if len(result.AnalyzeResult.Pages) == 0 {
		return []Page{{Number: 1, Content: content, Offset: 0}}
	}

	pages := make([]Page, 0, len(result.AnalyzeResult.Pages))
	for _, p := range result.AnalyzeResult.Pages {
		if len(p.Spans) == 0 {
			continue
		}

		start := p.Spans[0].Offset
		end := start
		for _, span := range p.Spans {
			if span.Offset+span.Length > end {
				end = span.Offset + span.Length
			}
		}

		if start > len(content) {
			continue
		}
		if end > len(content) {
			end = len(content)
		}

		pages = append(pages, Page{
			Number:  p.PageNumber,
			Content: content[start:end],
			Offset:  start,
		})
	}

	if len(pages) == 0 {
		return []Page{{Number: 1, Content: content, Offset: 0}}
	}

	return pages
}

// analysisError classifies a non-success status. Throttling and server-side
// failures are transient; 4xx means the request or document is rejected.
func analysisError(resp *http.Response) error {
	sentinel := domain.ErrParseFailed
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		sentinel = domain.ErrAnalysisProviderError
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		return fmt.Errorf("analysis API error %d (%s): %s: %w",
			resp.StatusCode, parsed.Error.Code, parsed.Error.Message, sentinel)
	}

	return fmt.Errorf("analysis API error %d: %w", resp.StatusCode, sentinel)
}
