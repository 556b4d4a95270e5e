package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const fetcherTestFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Fetched Feed</title>
    <item><title>One</title><link>https://example.com/1</link></item>
  </channel>
</rss>`

func testFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return NewFetcher(&http.Client{}, NewParser(), opts)
}

func TestFetcher_Success(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Write([]byte(fetcherTestFeed))
	}))
	defer server.Close()

	fetcher := testFetcher(FetcherOptions{Retries: 2, UserAgent: "Digest Test"})
	fetched, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if fetched.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", fetched.Attempts)
	}
	if fetched.Metadata.Title != "Fetched Feed" {
		t.Errorf("Expected title 'Fetched Feed', got '%s'", fetched.Metadata.Title)
	}
	if len(fetched.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(fetched.Items))
	}
	if userAgent != "Digest Test" {
		t.Errorf("Expected user agent 'Digest Test', got '%s'", userAgent)
	}
	if accept != acceptHeader {
		t.Errorf("Expected accept header '%s', got '%s'", acceptHeader, accept)
	}
}

func TestFetcher_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(fetcherTestFeed))
	}))
	defer server.Close()

	fetched, err := testFetcher(FetcherOptions{Retries: 2}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetched.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", fetched.Attempts)
	}
}

func TestFetcher_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher(FetcherOptions{Retries: 2}).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got %T", err)
	}
	if fetchErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", fetchErr.Attempts)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", fetchErr.StatusCode)
	}
	if fetchErr.URL != server.URL {
		t.Errorf("Expected URL '%s', got '%s'", server.URL, fetchErr.URL)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 requests, got %d", calls.Load())
	}
}

func TestFetcher_ParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	defer server.Close()

	_, err := testFetcher(FetcherOptions{Retries: 1}).Fetch(context.Background(), server.URL)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got %T: %v", err, err)
	}
	if fetchErr.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", fetchErr.Attempts)
	}
	if fetchErr.StatusCode != 0 {
		t.Errorf("Expected no status code, got %d", fetchErr.StatusCode)
	}
}

func TestFetcher_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	if _, err := testFetcher(FetcherOptions{}).Fetch(context.Background(), server.URL); err == nil {
		t.Error("Expected error for empty body")
	}
}

func TestFetcher_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	start := time.Now()
	_, err := testFetcher(FetcherOptions{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Expected the attempt to be cut short, took %v", elapsed)
	}
}

func TestFetcher_Proxy(t *testing.T) {
	feedURL := "https://example.com/feed.xml?a=1&b=2"

	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Query().Get("url")
		w.Write([]byte(fetcherTestFeed))
	}))
	defer server.Close()

	fetcher := testFetcher(FetcherOptions{ProxyURL: server.URL + "/raw?url="})

	expected := server.URL + "/raw?url=" + url.QueryEscape(feedURL)
	if got := fetcher.RequestURL(feedURL); got != expected {
		t.Errorf("Expected request URL '%s', got '%s'", expected, got)
	}

	if _, err := fetcher.Fetch(context.Background(), feedURL); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if requested != feedURL {
		t.Errorf("Expected proxy to receive '%s', got '%s'", feedURL, requested)
	}

	direct := testFetcher(FetcherOptions{})
	if got := direct.RequestURL(feedURL); got != feedURL {
		t.Errorf("Expected direct request URL '%s', got '%s'", feedURL, got)
	}
}

func TestFetcher_BackOffSchedule(t *testing.T) {
	fetcher := testFetcher(FetcherOptions{Retries: 3, RetryDelay: time.Second})

	b := fetcher.newBackOff(context.Background())
	b.Reset()

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, backoff.Stop}
	for i, want := range expected {
		if got := b.NextBackOff(); got != want {
			t.Errorf("Backoff %d: expected %v, got %v", i, want, got)
		}
	}
}
