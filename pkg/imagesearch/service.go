package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.pexels.com/v1"

// service implements the ImageSearchService interface
type service struct {
	config *Config
	client *http.Client
}

// NewImageSearchService creates a Pexels-backed image search service
func NewImageSearchService(config Config) ImageSearchService {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	return &service{
		config: &config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Search implements ImageSearchService
func (s *service) Search(ctx context.Context, query string) (*Photo, error) {
	result, err := s.SearchWithOptions(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return &result.Photos[0], nil
}

// SearchWithOptions implements ImageSearchService
func (s *service) SearchWithOptions(ctx context.Context, query string, options *SearchOptions) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &SearchError{Code: "missing_query", Message: "Search query is required"}
	}

	key := s.config.APIKey
	perPage := 1
	if options != nil {
		if options.APIKey != "" {
			key = options.APIKey
		}
		if options.PerPage > 0 {
			perPage = options.PerPage
		}
	}
	if key == "" {
		return nil, &SearchError{
			Code:    "missing_api_key",
			Message: "Pexels API key is required",
		}
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", fmt.Sprint(perPage))
	endpoint := s.config.BaseURL + "/search?" + params.Encode()

	result, err := s.executeRequestWithRetry(ctx, endpoint, key)
	if err != nil {
		return nil, err
	}
	if len(result.Photos) == 0 {
		return nil, &SearchError{
			Code:    "no_results",
			Message: "No photos found",
			Details: query,
		}
	}

	result.Query = query
	result.Timestamp = time.Now().Unix()
	return result, nil
}

// executeRequestWithRetry retries 5xx and network failures only.
func (s *service) executeRequestWithRetry(ctx context.Context, endpoint, key string) (*SearchResult, error) {
	var lastErr *SearchError

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &SearchError{Code: "cancelled", Message: "Search cancelled", Details: ctx.Err().Error()}
			case <-time.After(s.config.RetryDelay):
			}
		}

		result, err := s.executeSingleRequest(ctx, endpoint, key)
		if err == nil {
			return result, nil
		}

		var searchErr *SearchError
		if !errors.As(err, &searchErr) || !searchErr.Retryable() {
			return nil, err
		}
		lastErr = searchErr
	}

	return nil, &SearchError{
		Code:    "request_failed",
		Message: "Image search API failed after retries",
		Details: lastErr.Error(),
	}
}

type pexelsResponse struct {
	TotalResults int `json:"total_results"`
	Photos       []struct {
		ID           int64  `json:"id"`
		URL          string `json:"url"`
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		Src          struct {
			Original string `json:"original"`
			Medium   string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

func (s *service) executeSingleRequest(ctx context.Context, endpoint, key string) (*SearchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &SearchError{
			Code:    "request_creation_failed",
			Message: "Failed to create HTTP request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", key)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Lumina/1.0")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &SearchError{Code: "cancelled", Message: "Search cancelled", Details: ctx.Err().Error()}
		}
		return nil, &SearchError{
			Code:    "network_error",
			Message: "Network request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &SearchError{
			Code:    "response_read_failed",
			Message: "Failed to read response body",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleHTTPError(resp.StatusCode, body)
	}

	var parsed pexelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &SearchError{
			Code:    "response_parse_failed",
			Message: "Failed to parse Pexels response",
			Details: err.Error(),
		}
	}

	result := &SearchResult{Total: parsed.TotalResults, Photos: []Photo{}}
	for _, p := range parsed.Photos {
		src := p.Src.Medium
		if src == "" {
			src = p.Src.Original
		}
		if src == "" {
			continue
		}
		result.Photos = append(result.Photos, Photo{
			ID:           p.ID,
			URL:          src,
			Alt:          p.Alt,
			Photographer: p.Photographer,
			PageURL:      p.URL,
		})
	}
	return result, nil
}

// handleHTTPError converts HTTP errors to SearchError
func handleHTTPError(statusCode int, body []byte) *SearchError {
	var errorResponse struct {
		Error string `json:"error"`
	}
	details := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error != "" {
		details = errorResponse.Error
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &SearchError{Code: "invalid_api_key", Message: "Unauthorized - invalid API key", Details: details}
	case http.StatusTooManyRequests:
		return &SearchError{Code: "rate_limit_exceeded", Message: "Rate limit exceeded", Details: details}
	case http.StatusBadRequest:
		return &SearchError{Code: "http_400", Message: "Bad request - invalid parameters", Details: details}
	}

	message := "HTTP request failed"
	switch statusCode {
	case 500:
		message = "Internal server error"
	case 502:
		message = "Bad gateway"
	case 503:
		message = "Service unavailable"
	case 504:
		message = "Gateway timeout"
	}
	return &SearchError{
		Code:    fmt.Sprintf("http_%d", statusCode),
		Message: message,
		Details: details,
	}
}
