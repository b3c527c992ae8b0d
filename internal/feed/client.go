// Package feed fetches the two upstream sources the daemon samples each
// cycle: the moderator presence page and the player-count endpoint.
//
// Both fetches go through one retrying HTTP [Client]. A failure is returned
// to the caller unchanged in kind (transport error, [*StatusError] or
// [ErrNotJSON]); deciding whether a failure degrades or aborts the cycle is
// the daemon's job.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent when [Options.UserAgent] is empty.
const DefaultUserAgent = "Mozilla/5.0 (compatible; modwatch)"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20 // 4 MiB

// ErrNotJSON marks a player-count response that could not be decoded.
var ErrNotJSON = errors.New("response is not valid JSON")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Status)
}

// Options configures a [Client].
type Options struct {
	// Timeout bounds a single attempt. Zero means 10 seconds.
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt.
	RetryMax int
	// RetryWait is the minimum backoff between attempts. Zero means 500ms.
	RetryWait time.Duration
	// UserAgent defaults to [DefaultUserAgent].
	UserAgent string
}

// Client fetches upstream feeds. It is safe for concurrent use.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
}

// NewClient returns a client configured by opts.
func NewClient(opts Options) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = max(opts.RetryMax, 0)
	c.RetryWaitMin = 500 * time.Millisecond
	if opts.RetryWait > 0 {
		c.RetryWaitMin = opts.RetryWait
	}
	c.RetryWaitMax = 10 * c.RetryWaitMin
	c.HTTPClient.Timeout = 10 * time.Second
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	c.Logger = nil // suppress retryablehttp's default logging
	c.ErrorHandler = keepLastResponse

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{http: c, userAgent: ua}
}

// keepLastResponse hands back the final response once retries run out, so a
// persistent 5xx surfaces as a [*StatusError] instead of a generic error.
func keepLastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// ///////////////////////////////////////////////
// Fetching
// ///////////////////////////////////////////////

// get issues an uncached GET and returns the capped body of a 2xx response.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, maxResponseBytes)
	}
	return body, nil
}
