// Package httpapi implements the gateway counterparties as JSON over fasthttp.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	appLogger "github.com/miniconomy2025/sumsang-phones/pkg/logger"
)

// Client performs bounded JSON calls against one counterparty base URL.
type Client struct {
	name      string
	baseURL   string
	companyID string
	timeout   time.Duration
	http      *fasthttp.Client
	logger    *zap.Logger
}

// Options configures a Client.
type Options struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	// CompanyID is sent on every request so counterparties can identify us.
	CompanyID string
	// Dial overrides the transport, used by tests with an in-memory listener.
	Dial fasthttp.DialFunc
}

// NewClient builds a client with the given options.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &fasthttp.Client{
		Name:                opts.CompanyID,
		ReadTimeout:         opts.Timeout,
		WriteTimeout:        opts.Timeout,
		MaxIdleConnDuration: time.Minute,
		Dial:                opts.Dial,
	}
	return &Client{
		name:      opts.Name,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		companyID: opts.CompanyID,
		timeout:   opts.Timeout,
		http:      hc,
		logger:    logger.With(zap.String("counterparty", opts.Name)),
	}
}

// Name identifies the counterparty in logs and delivery requests.
func (c *Client) Name() string {
	return c.name
}

// do sends in as JSON and decodes the response into out. Transport failures
// and timeouts map to domain.ErrCodeUnavailable, 404 to domain.ErrCodeNotFound,
// other 4xx to domain.ErrCodeRejected.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c == nil || c.baseURL == "" {
		return domain.ErrCounterpartyUnavailable
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	reqID, ok := appLogger.RequestIDFromContext(ctx)
	if !ok {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)
	if c.companyID != "" {
		req.Header.Set("Client-Id", c.companyID)
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrCounterpartyUnavailable.Message, err)
	}

	started := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	c.logger.Debug("counterparty call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(started)),
		zap.Error(err))
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrCounterpartyUnavailable.Message,
				fmt.Errorf("%s %s: timeout", c.name, path))
		}
		return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrCounterpartyUnavailable.Message,
			fmt.Errorf("%s %s: %w", c.name, path, err))
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return domain.WrapError(domain.ErrCodeNotFound, "counterparty resource not found",
			fmt.Errorf("%s %s", c.name, path))
	case status >= 500:
		return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrCounterpartyUnavailable.Message,
			fmt.Errorf("%s %s: status %d", c.name, path, status))
	case status >= 400:
		return domain.WrapError(domain.ErrCodeRejected, domain.ErrCounterpartyRejected.Message,
			fmt.Errorf("%s %s: status %d: %s", c.name, path, status, truncate(resp.Body(), 256)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidResponse.Message,
			fmt.Errorf("%s %s: %w", c.name, path, err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func invalid(name, field string) error {
	return domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidResponse.Message,
		fmt.Errorf("%s: missing %s", name, field))
}
