package imagesearch

import (
	"context"
	"time"
)

// ImageSearchService defines the interface for image search operations
type ImageSearchService interface {
	// Search returns the first photo matching query
	Search(ctx context.Context, query string) (*Photo, error)

	// SearchWithOptions searches with a per-call key or page size
	SearchWithOptions(ctx context.Context, query string, options *SearchOptions) (*SearchResult, error)
}

// Photo is one Pexels photo reduced to what the app shows.
type Photo struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Alt          string `json:"alt,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	PageURL      string `json:"pageUrl,omitempty"`
}

// SearchResult represents the response from an image search
type SearchResult struct {
	Query     string  `json:"query"`
	Photos    []Photo `json:"photos"`
	Total     int     `json:"total,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

type SearchOptions struct {
	// Overrides Config.APIKey when set
	APIKey string

	// Number of photos to request (default: 1)
	PerPage int
}

// Config holds configuration for the image search service
type Config struct {
	APIKey  string
	BaseURL string

	// HTTP client timeout (default: 15s)
	Timeout time.Duration

	// Retries after the first attempt on 5xx and network errors (default: 2)
	MaxRetries int
	RetryDelay time.Duration
}

// SearchError represents an error that occurred during search
type SearchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *SearchError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Retryable reports whether the failure may clear up on its own.
func (e *SearchError) Retryable() bool {
	switch e.Code {
	case "network_error", "response_read_failed", "http_500", "http_502", "http_503", "http_504":
		return true
	}
	return false
}
