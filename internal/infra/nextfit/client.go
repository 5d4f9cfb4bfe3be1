// Package nextfit reads the customer and receivable collections of the
// NextFit integration API.
package nextfit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"billing_notifier/internal/domain/alias"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 30
	defaultTimeout  = 30 * time.Second
	// maxResponseSize caps a single page body (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

// PageFunc receives the items of each non-empty page in order.
type PageFunc = func(items []alias.Record) error

// Options configures a Client. Sleep replaces the context-aware wait used
// between pages; nil means a real timer. Retry backoff is waited out by the
// retrying transport.
type Options struct {
	BaseURL    string
	APIKey     string
	Version    string
	PageSize   int
	PageDelay  time.Duration
	Timeout    time.Duration
	Policy     RetryPolicy
	HTTPClient *http.Client
	Sleep      func(ctx context.Context, d time.Duration) error
}

// Client performs paginated, retrying GETs against the API.
type Client struct {
	baseURL    string
	apiKey     string
	version    string
	pageSize   int
	pageDelay  time.Duration
	policy     RetryPolicy
	httpClient *retryablehttp.Client
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *logrus.Entry
}

func NewClient(opts Options, logger *logrus.Entry) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		version:   opts.Version,
		pageSize:  opts.PageSize,
		pageDelay: opts.PageDelay,
		policy:    opts.Policy,
		sleep:     opts.Sleep,
		logger:    logger,
	}
	c.httpClient = &retryablehttp.Client{
		HTTPClient:     opts.HTTPClient,
		Logger:         leveledLogger{entry: logger},
		RetryMax:       opts.Policy.MaxRetries,
		CheckRetry:     c.checkRetry,
		Backoff:        c.backoff,
		ErrorHandler:   c.giveUp,
		RequestLogHook: c.logAttempt,
	}
	return c
}

// Query describes one paginated collection read.
type Query struct {
	Path      string
	Params    url.Values
	ListKeys  []string
	PageDelay time.Duration
}

// Each walks the collection page by page, handing every non-empty page to
// fn. It stops on an empty page, on an explicit false next-page flag, or,
// when no flag is present, on a short page. A page that fails after its
// retries aborts the walk; pages already handed to fn stay with the caller.
func (c *Client) Each(ctx context.Context, q Query, fn PageFunc) error {
	log := c.logger.WithField("path", q.Path)

	for skip := 0; ; skip += c.pageSize {
		pageURL, err := c.pageURL(q, skip)
		if err != nil {
			return err
		}

		log.WithField("skip", skip).WithField("take", c.pageSize).Debug("Fetching page")
		body, err := c.get(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("error fetching %s (Skip=%d): %w", q.Path, skip, err)
		}

		page, err := DecodePage(body, q.ListKeys)
		if err != nil {
			if errors.Is(err, ErrUnexpectedShape) {
				log.WithError(err).WithField("skip", skip).Warn("Unexpected page format, stopping pagination")
				return nil
			}
			return fmt.Errorf("error reading %s (Skip=%d): %w", q.Path, skip, err)
		}

		if len(page.Items) == 0 {
			log.WithField("skip", skip).Info("Empty page, pagination finished")
			return nil
		}

		if err := fn(page.Items); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"skip": skip, "items": len(page.Items), "shape": page.Kind.String()}).Debug("Page received")

		if page.HasNext != nil {
			if !*page.HasNext {
				log.Info("Last page reached (next-page flag is false)")
				return nil
			}
		} else if len(page.Items) < c.pageSize {
			log.Info("Last page reached (short page)")
			return nil
		}

		if q.PageDelay > 0 {
			if err := c.sleep(ctx, q.PageDelay); err != nil {
				return err
			}
		}
	}
}

// FetchAll collects every item of the collection. On error the items
// gathered so far are returned with it.
func (c *Client) FetchAll(ctx context.Context, q Query) ([]alias.Record, error) {
	var all []alias.Record
	err := c.Each(ctx, q, func(items []alias.Record) error {
		all = append(all, items...)
		return nil
	})
	return all, err
}

func (c *Client) pageURL(q Query, skip int) (string, error) {
	u, err := url.Parse(c.baseURL + q.Path)
	if err != nil {
		return "", fmt.Errorf("invalid url for %s: %w", q.Path, err)
	}
	params := url.Values{}
	for k, vs := range q.Params {
		params[k] = append([]string(nil), vs...)
	}
	params.Set("Skip", strconv.Itoa(skip))
	params.Set("Take", strconv.Itoa(c.pageSize))
	if c.version != "" {
		params.Set("version", c.version)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// get runs one GET under the retry policy.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("accept", "text/plain")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body), URL: resp.Request.URL.Path}
	}
	return body, nil
}

// checkRetry classifies one attempt with the policy. Cancellation is never
// retried.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return c.policy.ShouldRetry(err), nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	return c.policy.ShouldRetry(&StatusError{StatusCode: resp.StatusCode, URL: resp.Request.URL.Path}), nil
}

// backoff maps the transport's 0-based retry counter onto the policy.
func (c *Client) backoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return c.policy.Backoff(attemptNum + 1)
}

func (c *Client) logAttempt(_ retryablehttp.Logger, req *http.Request, attemptNum int) {
	if attemptNum == 0 {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"path":    req.URL.Path,
		"attempt": attemptNum + 1,
		"wait":    c.policy.Backoff(attemptNum).String(),
	}).Warn("Retrying request")
}

// giveUp runs once the transport stops retrying with a failure in hand.
func (c *Client) giveUp(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if resp != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if err == nil {
			err = &StatusError{StatusCode: resp.StatusCode, Body: string(body), URL: resp.Request.URL.Path}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
