package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/domain"
)

const maxResponseBytes = 1 << 20

// Client normalizes upstream API responses into body bytes or a typed error.
// Status classification: 2xx succeeds, anything >= 300 becomes a StatusError
// (500 additionally matches domain.ErrServerFault), and transport failures
// wrap domain.ErrTransport.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// New constructs a Client. When httpClient is nil a default client with the
// given timeout and a fresh in-memory cookie jar is used.
func New(httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Do executes the request and returns the response body on 2xx.
func (c *Client) Do(req *http.Request) ([]byte, error) {
	requestID := uuid.NewString()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log().Warn("request failed",
			zap.String("request_id", requestID),
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransport, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	c.log().Warn("unexpected status",
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode))
	return nil, &domain.StatusError{Code: resp.StatusCode}
}

// ClearSiteData drops every cookie held by the underlying client by swapping
// in a fresh jar. Used by the logout coordinator.
func (c *Client) ClearSiteData() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		c.log().Warn("reset cookie jar", zap.Error(err))
		return
	}
	c.httpClient.Jar = jar
}

func (c *Client) log() *zap.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return zap.L()
}
