package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

type RestyClient struct {
	client *resty.Client
}

type Option func(*resty.Client)

// WithBearerToken sets the Authorization header on every request.
func WithBearerToken(token string) Option {
	return func(c *resty.Client) {
		if token != "" {
			c.SetAuthToken(token)
		}
	}
}

// WithHeader sets a default header on every request.
func WithHeader(key, value string) Option {
	return func(c *resty.Client) {
		c.SetHeader(key, value)
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(client)
	}
	return &RestyClient{client: client}
}

// Get runs a GET with optional query params. A non-2xx status is not an error;
// callers check BaseResponse.
func (rc *RestyClient) Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.client.R().SetContext(ctx)
	if result != nil {
		req.SetResult(result)
	}
	if queryParams != nil {
		req.SetQueryParams(queryParams)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(endpoint)
	return toBaseResponse(resp), err
}

func (rc *RestyClient) Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.client.R().
		SetContext(ctx).
		SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}

	resp, err := req.Post(endpoint)
	return toBaseResponse(resp), err
}

func toBaseResponse(resp *resty.Response) *BaseResponse {
	if resp == nil {
		return &BaseResponse{}
	}
	return &BaseResponse{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}
}
