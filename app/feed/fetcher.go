package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml"

// FetchError reports a feed that could not be fetched and parsed after all attempts.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s failed after %d attempts: HTTP %d", e.URL, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is an attempt that got a non-200 response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

type FetcherOptions struct {
	Timeout    time.Duration // per attempt
	Retries    int
	RetryDelay time.Duration // delay before the first retry, doubled each time
	UserAgent  string
	ProxyURL   string // prefix for the escaped feed URL; empty fetches directly
}

type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	opts       FetcherOptions
}

func NewFetcher(httpClient *http.Client, parser *Parser, opts FetcherOptions) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if parser == nil {
		parser = NewParser()
	}
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		opts:       opts,
	}
}

// RequestURL returns the address actually requested for feedURL.
func (f *Fetcher) RequestURL(feedURL string) string {
	if f.opts.ProxyURL == "" {
		return feedURL
	}
	return f.opts.ProxyURL + url.QueryEscape(feedURL)
}

// Fetch downloads and parses feedURL, retrying failed attempts with
// exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Fetched, error) {
	var (
		result     *Fetched
		attempts   int
		statusCode int
	)

	operation := func() error {
		attempts++

		metadata, items, err := f.attempt(ctx, feedURL)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				statusCode = statusErr.StatusCode
			} else {
				statusCode = 0
			}
			return err
		}

		result = &Fetched{Metadata: metadata, Items: items}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("Fetch attempt failed", "url", feedURL, "attempt", attempts, "error", err, "backoff", wait)
	}

	if err := backoff.RetryNotify(operation, f.newBackOff(ctx), notify); err != nil {
		return nil, &FetchError{
			URL:        feedURL,
			Attempts:   attempts,
			StatusCode: statusCode,
			Err:        err,
		}
	}

	result.Attempts = attempts
	return result, nil
}

func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(f.opts.Retries, 0))), ctx)
}

func (f *Fetcher) attempt(ctx context.Context, feedURL string) (*Metadata, []RawItem, error) {
	timeout := f.opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", f.RequestURL(feedURL), nil)
	if err != nil {
		return nil, nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return f.parser.Run(data)
}
