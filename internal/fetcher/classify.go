package fetcher

import (
	"context"
	"errors"

	"github.com/rickgao/twstock-daily/internal/api"
)

// Failure categories written to the run log.
const (
	CategoryCanceled    = "canceled"
	CategoryTimeout     = "timeout"
	CategoryRedirect    = "redirect"
	CategoryBreakerOpen = "upstream_unavailable"
	CategoryMalformed   = "malformed_response"
	CategoryAPIStatus   = "api_status"
	CategoryEmpty       = "empty_result"
	CategoryExhausted   = "retries_exhausted"
	CategoryHTTP        = "http_error"
	CategoryEndpoint    = "endpoint_unavailable"
	CategoryRequest     = "request_failed"
	CategoryRejected    = "row_rejected"
	CategorySink        = "sink_error"
)

// classify maps a fetch error to its failure category.
func classify(err error) string {
	var (
		redirect *api.RedirectError
		breaker  *api.BreakerOpenError
		decode   *api.DecodeError
		status   *api.StatusError
		apiErr   *api.APIError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &redirect):
		return CategoryRedirect
	case errors.As(err, &breaker):
		return CategoryBreakerOpen
	case errors.As(err, &decode):
		return CategoryMalformed
	case errors.As(err, &status):
		return CategoryAPIStatus
	case errors.Is(err, api.ErrNoData):
		return CategoryEmpty
	case errors.Is(err, api.ErrRetriesExhausted):
		return CategoryExhausted
	case errors.As(err, &apiErr):
		return CategoryHTTP
	case errors.Is(err, api.ErrNoEndpoint):
		return CategoryEndpoint
	}
	return CategoryRequest
}
