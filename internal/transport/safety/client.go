// Package safety is a client for a text content moderation service.
package safety

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

const apiVersion = "2023-10-01"

// Analysis is the moderation outcome for one text.
type Analysis struct {
	// Severities maps category name (Hate, SelfHarm, Sexual, Violence)
	// to the detected severity level, 0 meaning clean.
	Severities map[string]int
}

// MaxSeverity returns the highest severity across categories.
func (a Analysis) MaxSeverity() int {
	max := 0
	for _, s := range a.Severities {
		if s > max {
			max = s
		}
	}
	return max
}

// Client calls the content moderation REST API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

// Config holds the content moderation service settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New creates a content moderation client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		logger:   cfg.Logger,
	}
}

// AnalyzeText runs all moderation categories over the text.
func (c *Client) AnalyzeText(ctx context.Context, text string) (Analysis, error) {
	body, err := json.Marshal(map[string]any{"text": text})
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal moderation request: %w", err)
	}

	url := fmt.Sprintf("%s/contentsafety/text:analyze?api-version=%s", c.endpoint, apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Analysis{}, fmt.Errorf("build moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("moderation request: %w: %w", err, domain.ErrSafetyProviderError)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Analysis{}, fmt.Errorf("moderation API throttled: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Analysis{}, fmt.Errorf("moderation API error %d: %s: %w",
			resp.StatusCode, bytes.TrimSpace(raw), domain.ErrSafetyProviderError)
	}

	var parsed struct {
		CategoriesAnalysis []struct {
			Category string `json:"category"`
			Severity int    `json:"severity"`
		} `json:"categoriesAnalysis"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Analysis{}, fmt.Errorf("decode moderation response: %w: %w", err, domain.ErrSafetyProviderError)
	}

	severities := make(map[string]int, len(parsed.CategoriesAnalysis))
	for _, ca := range parsed.CategoriesAnalysis {
		severities[ca.Category] = ca.Severity
	}

	return Analysis{Severities: severities}, nil
}
