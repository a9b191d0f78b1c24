package docintel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

func testClient(endpoint string) *Client {
	c := New(&Config{Endpoint: endpoint, APIKey: "key", Logger: zap.NewNop()})
	c.pollWait = time.Millisecond
	return c
}

func TestAnalyzeURL_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).AnalyzeURL(context.Background(), ModelLayout, "https://h/doc.pdf")
	if !errors.Is(err, domain.ErrAnalysisProviderError) {
		t.Fatalf("expected analysis provider error, got %v", err)
	}
	if !domain.Retryable(err) {
		t.Error("a 5xx from the analysis API must be retryable")
	}
}

func TestAnalyzeURL_ThrottledMapsToRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).AnalyzeURL(context.Background(), ModelLayout, "https://h/doc.pdf")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if !domain.Retryable(err) {
		t.Error("throttling must be retryable")
	}
}

func TestAnalyzeURL_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"InvalidRequest","message":"bad document"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).AnalyzeURL(context.Background(), ModelLayout, "https://h/doc.pdf")
	if !errors.Is(err, domain.ErrParseFailed) {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if domain.Retryable(err) {
		t.Error("a rejected document must not be retried")
	}
}

func TestAnalyzeURL_NetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	_, err := testClient(srv.URL).AnalyzeURL(context.Background(), ModelLayout, "https://h/doc.pdf")
	if !errors.Is(err, domain.ErrAnalysisProviderError) {
		t.Fatalf("expected analysis provider error, got %v", err)
	}
	if !domain.Retryable(err) {
		t.Error("a connection failure must be retryable")
	}
}

func TestAnalyzeURL_FailedStatusIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", "http://"+r.Host+"/op/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).AnalyzeURL(context.Background(), ModelLayout, "https://h/doc.pdf")
	if !errors.Is(err, domain.ErrParseFailed) {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if domain.Retryable(err) {
		t.Error("a failed analysis must not be retried")
	}
}

func TestAnalyzeURL_Succeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", "http://"+r.Host+"/op/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte(`{
			"status": "succeeded",
			"analyzeResult": {
				"content": "page one text",
				"pages": [{"pageNumber": 1, "spans": [{"offset": 0, "length": 13}]}]
			}
		}`))
	}))
	defer srv.Close()

	pages, err := testClient(srv.URL).AnalyzeURL(context.Background(), ModelLayout, "https://h/doc.pdf")
	if err != nil {
		t.Fatalf("AnalyzeURL: %v", err)
	}
	if len(pages) != 1 || pages[0].Content != "page one text" || pages[0].Number != 1 {
		t.Fatalf("pages = %+v", pages)
	}
}
