package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/tour-bookings/pkg/logger"
)

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			// redirects belong to the browser, not the edge
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

// ProxyRequest forwards body unchanged. Signed payloads depend on that.
func (p *ServiceProxy) ProxyRequest(ctx context.Context, method, path string, body []byte, headers http.Header) (*http.Response, error) {
	url := p.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("X-Gateway-Forwarded", "true")

	logger.DebugContext(ctx, "Proxying request", "method", method, "url", url)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
