package httpclient

import (
	"context"
	"net/http"
)

type BaseResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsSuccess reports a 2xx status.
func (r *BaseResponse) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError reports a 4xx status other than 429.
func (r *BaseResponse) IsClientError() bool {
	return r != nil && r.StatusCode >= 400 && r.StatusCode < 500 && r.StatusCode != http.StatusTooManyRequests
}

type HTTPClient interface {
	Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error)
	Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error)
}
