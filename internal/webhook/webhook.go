// Package webhook publishes the status message to a Discord webhook and
// keeps that single message up to date across cycles and restarts.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

// Message is the execute/edit payload.
type Message struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Embed is a rich embed block.
type Embed struct {
	Title     string  `json:"title,omitempty"`
	Color     int     `json:"color,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Footer    *Footer `json:"footer,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Field is one embed field.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer.
type Footer struct {
	Text string `json:"text"`
}

// Field length limits enforced by Discord.
const (
	MaxFieldName  = 256
	MaxFieldValue = 1024
)

// APIError is returned when the webhook endpoint answers with a non-2xx
// status.
type APIError struct {
	Method string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webhook %s: HTTP %d: %s", e.Method, e.Status, e.Body)
}

// IsNotFound reports whether err is an [*APIError] for a missing message or
// webhook.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20 // 1 MiB

// Options configures a [Client].
type Options struct {
	// Timeout bounds a single attempt. Zero means 15 seconds.
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt.
	RetryMax int
	// RetryWait is the minimum backoff between attempts. Zero means 1s.
	RetryWait time.Duration
	// Rate and Burst pace outbound requests. Zero Rate means Discord's
	// webhook bucket of 5 requests per 2 seconds.
	Rate  rate.Limit
	Burst int
}

// Client talks to one webhook URL. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *retryablehttp.Client
	create  *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient returns a client for the webhook at rawURL.
func NewClient(rawURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parsing webhook URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("webhook URL must be http(s), got %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	limit, burst := opts.Rate, opts.Burst
	if limit == 0 {
		limit = rate.Every(400 * time.Millisecond)
	}
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		base:    u,
		http:    newRetryClient(opts, retryablehttp.DefaultRetryPolicy),
		create:  newRetryClient(opts, createRetryPolicy),
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

func newRetryClient(opts Options, policy retryablehttp.CheckRetry) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = max(opts.RetryMax, 0)
	c.RetryWaitMin = time.Second
	if opts.RetryWait > 0 {
		c.RetryWaitMin = opts.RetryWait
	}
	c.RetryWaitMax = 30 * c.RetryWaitMin
	c.HTTPClient.Timeout = 15 * time.Second
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	c.CheckRetry = policy
	c.Logger = nil // suppress retryablehttp's default logging
	c.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return c
}

// createRetryPolicy retries a post only on 429. Any other failed post may
// still have stored the message.
func createRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Create posts msg as a new message and returns its id.
func (c *Client) Create(ctx context.Context, msg Message) (string, error) {
	u := *c.base
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()

	body, err := c.send(ctx, c.create, http.MethodPost, u.String(), msg)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decoding created message: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("webhook returned a message without an id")
	}
	slog.Debug("webhook message created", "message_id", created.ID)
	return created.ID, nil
}

// Edit replaces the content of message id with msg.
func (c *Client) Edit(ctx context.Context, id string, msg Message) error {
	u := *c.base
	u.Path += "/messages/" + url.PathEscape(id)
	if _, err := c.send(ctx, c.http, http.MethodPatch, u.String(), msg); err != nil {
		return err
	}
	slog.Debug("webhook message edited", "message_id", id)
	return nil
}

func (c *Client) send(ctx context.Context, hc *retryablehttp.Client, method, target string, msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("webhook %s: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: method, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
