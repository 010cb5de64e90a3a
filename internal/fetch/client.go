// Package fetch resolves identifiers to classification flags over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/metabolink/hmdbscan/internal/scan"
)

// Pages larger than this are treated as corrupt rather than buffered.
const maxBodyBytes = 8 << 20

// Config controls Client behavior.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client fetches one MetaboCard page per identifier and classifies it.
// Stateless across invocations and safe for concurrent use.
type Client struct {
	http       *http.Client
	classifier scan.Classifier
	cfg        Config
	logger     *zap.Logger
}

// NewClient builds a Client around a single shared http.Client with the
// configured per-request cutoff.
func NewClient(cfg Config, classifier scan.Classifier, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://hmdb.ca/metabolites"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Fetch retrieves the page for id with retries and exponential back-off.
// Transient failures (timeouts, connection resets, 5xx, 429) are retried up
// to MaxRetries additional times; other failures surface immediately. The
// returned error is a *scan.FetchError unless the context ended first.
func (c *Client) Fetch(ctx context.Context, id scan.Identifier) (scan.Flag, error) {
	attempts := 0
	operation := func() (scan.Flag, error) {
		attempts++
		return c.attempt(ctx, id)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BackoffInitial
	bo.MaxInterval = c.cfg.BackoffMax

	flag, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		ferr := c.terminal(id, attempts, err)
		c.logger.Debug("fetch abandoned",
			zap.String("id", string(id)),
			zap.String("kind", string(ferr.Kind)),
			zap.Int("attempts", ferr.Attempts),
			zap.Error(err),
		)
		return "", ferr
	}
	return flag, nil
}

func (c *Client) attempt(ctx context.Context, id scan.Identifier) (scan.Flag, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + string(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, ok := retryAfterSeconds(resp); ok {
			return "", backoff.RetryAfter(secs)
		}
		return "", &statusError{code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return "", &statusError{code: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(&statusError{code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	flag, err := c.classifier.Classify(body)
	if err != nil {
		return "", backoff.Permanent(&classifyError{err: err})
	}
	return flag, nil
}

// terminal folds the last attempt error into the FetchError taxonomy.
func (c *Client) terminal(id scan.Identifier, attempts int, err error) *scan.FetchError {
	ferr := &scan.FetchError{ID: id, Attempts: attempts, Err: err}

	var se *statusError
	var ce *classifyError
	var netErr net.Error
	switch {
	case errors.As(err, &se):
		ferr.Kind = scan.KindHTTPStatus
		ferr.Status = se.code
	case errors.As(err, &ce):
		ferr.Kind = scan.KindParseFailure
	case errors.Is(err, context.DeadlineExceeded):
		ferr.Kind = scan.KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		ferr.Kind = scan.KindTimeout
	default:
		// DNS failures, refused and reset connections all land here.
		ferr.Kind = scan.KindConnectionRefused
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		ferr.Kind = scan.KindConnectionRefused
	}
	return ferr
}

func retryAfterSeconds(resp *http.Response) (int, bool) {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

type classifyError struct {
	err error
}

func (e *classifyError) Error() string {
	return fmt.Sprintf("classify page: %v", e.err)
}

func (e *classifyError) Unwrap() error {
	return e.err
}
