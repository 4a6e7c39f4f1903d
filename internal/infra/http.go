package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of an upstream body is read. The FMP bulk
// profile export is the largest payload we handle.
const maxBodyBytes = 256 << 20

// ErrBodyTooLarge is wrapped in an *ErrUpstream when a response exceeds the
// body limit. The body is rejected rather than truncated.
var ErrBodyTooLarge = errors.New("response body too large")

// ErrUpstream reports a failed call to an upstream API: either a transport
// error (Status == 0) or a non-200 response.
type ErrUpstream struct {
	Op     string // e.g. "fetch profiles"
	Status int
	Err    error
}

func (e *ErrUpstream) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: upstream unavailable: %v", e.Op, e.Err)
}

func (e *ErrUpstream) Unwrap() error { return e.Err }

// NotFound reports whether the upstream answered 404.
func (e *ErrUpstream) NotFound() bool { return e.Status == http.StatusNotFound }

// IsUpstream reports whether err is (or wraps) an *ErrUpstream.
func IsUpstream(err error) bool {
	var up *ErrUpstream
	return errors.As(err, &up)
}

// HTTPClient performs rate-limited GET requests with an explicit timeout.
type HTTPClient struct {
	client  *http.Client
	limiter *RateLimiter
	maxBody int64
}

// NewHTTPClient builds a client. timeout <= 0 uses DefaultTimeout; a nil
// limiter disables throttling.
func NewHTTPClient(timeout time.Duration, limiter *RateLimiter) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		maxBody: maxBodyBytes,
	}
}

// DoGet issues a GET and returns the full body when the status is 200.
// Any other outcome is an *ErrUpstream tagged with op.
func (c *HTTPClient) DoGet(ctx context.Context, op, url string, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ErrUpstream{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ErrUpstream{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ErrUpstream{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &ErrUpstream{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &ErrUpstream{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &ErrUpstream{Op: op, Err: fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.maxBody)}
	}
	return body, nil
}
