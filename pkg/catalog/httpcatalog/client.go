package httpcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/ratelimit"
	"docharvest/pkg/retry"
)

// Client is the HTTP client used for catalog pages and document bodies
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a client configured from the catalog and rate limit sections
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := NewClientWith(
		&http.Client{Timeout: cfg.Catalog.PageLoadTimeout},
		ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		retry.FromRateLimit(&cfg.RateLimit, log),
		log,
	)
	if cfg.Catalog.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.Catalog.UserAgent)
	}
	if cfg.Catalog.Cookie != "" {
		c.SetHeader("Cookie", cfg.Catalog.Cookie)
	}
	return c
}

// NewClientWith assembles a client from explicit collaborators. A nil
// limiter disables pacing and a nil retry config makes a single attempt.
func NewClientWith(httpClient *http.Client, limiter ratelimit.Limiter, retryCfg *retry.Config, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.MaxAttempts = 1
		retryCfg.RetryIf = func(error) bool { return false }
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryCfg.Logger = log

	return &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"Accept":          "application/json, */*",
			"Accept-Language": "fr-FR,fr;q=0.9,en;q=0.8",
		},
		limiter: limiter,
		retry:   retryCfg,
		logger:  log,
	}
}

// SetHeader sets a custom header
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for k, v := range headers {
		c.headers[k] = v
	}
}

// doRequest performs a single request and converts transport failures and
// non-2xx statuses into typed errors. The caller owns the returned body.
func (c *Client) doRequest(ctx context.Context, method, url string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": method,
		"url":    url,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.Error{
			Type:     errs.ErrorTypeNetwork,
			Message:  "request failed",
			Position: errs.NoPosition,
			Err:      err,
		}
	}
	logger.LogRequest(c.logger, method, url, resp.StatusCode, time.Since(start))

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// get performs a GET with retries
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*http.Response, error) {
		return c.doRequest(ctx, http.MethodGet, url)
	}, c.retry)
}

// GetJSON fetches url and decodes the JSON body into target
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:     errs.ErrorTypeNetwork,
			Message:  "failed to read response body",
			Code:     resp.StatusCode,
			Position: errs.NoPosition,
			Err:      err,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return &errs.Error{
			Type:     errs.ErrorTypeParsing,
			Message:  "failed to parse JSON",
			Code:     resp.StatusCode,
			Position: errs.NoPosition,
			Err:      err,
		}
	}
	return nil
}

// Open fetches url and returns its body for streaming
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errType := errs.FromStatusCode(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	var message string
	switch errType {
	case errs.ErrorTypeAuth:
		message = "authentication required"
		c.logger.WarnWithFields("authentication error", fields)
	case errs.ErrorTypeNotFound:
		message = "resource not found"
		c.logger.WarnWithFields("resource not found", fields)
	case errs.ErrorTypeRateLimit:
		message = "rate limit exceeded"
		logger.LogRateLimit(c.logger, resp.Request.URL.Path, retryAfter(resp))
	case errs.ErrorTypeServerError:
		message = "server error"
		c.logger.ErrorWithFields("server error", fields)
	default:
		message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		c.logger.ErrorWithFields("unexpected catalog response", fields)
	}

	return errs.New(errType, message, resp.StatusCode)
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
