package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrBadInput signals invalid caller input (missing url, malformed message).
	ErrBadInput = errors.New("bad input")
	// ErrUnknownStrategy signals an unrecognized loader, chunker, or orchestration strategy.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrEtagConflict signals an optimistic concurrency conflict on the config document.
	ErrEtagConflict = errors.New("etag conflict")
	// ErrRateLimited signals a rate limit hit on a remote provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a chat completion provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrSafetyProviderError signals a content safety provider failure.
	ErrSafetyProviderError = errors.New("content safety provider error")
	// ErrAnalysisProviderError signals a document analysis provider failure.
	ErrAnalysisProviderError = errors.New("document analysis provider error")
	// ErrParseFailed signals an unrecoverable document parse failure.
	ErrParseFailed = errors.New("document parse failed")
	// ErrNotSupported signals an operation the selected variant does not implement.
	ErrNotSupported = errors.New("operation not supported by this variant")
)

// Retryable reports whether an error is transient and worth retrying.
// Provider and rate-limit failures are transient; input and parse failures are not.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrBadInput),
		errors.Is(err, ErrParseFailed),
		errors.Is(err, ErrUnknownStrategy),
		errors.Is(err, ErrNotSupported):
		return false
	}
	return true
}
