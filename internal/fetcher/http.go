package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxRetryDelay = 30 * time.Second
	partSuffix    = ".part"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RetryDelay is the wait before the first retry. It doubles per attempt
	// up to 30s unless the server sends Retry-After.
	RetryDelay time.Duration
	// HostLimits maps a host (with port when non-default) to its limiter.
	HostLimits map[string]*rate.Limiter
}

// HTTPFetcher downloads registry and roster files over HTTP(S).
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	fallback *rate.Limiter
}

// DefaultRateLimiters returns per-host limits for the open-data portals the
// registry export is published on.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"data.ny.gov":           rate.NewLimiter(2, 2),
		"data.cityofnewyork.us": rate.NewLimiter(2, 2),
	}
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "corpmatch/1.0"
	}
	if opts.HostLimits == nil {
		opts.HostLimits = map[string]*rate.Limiter{}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		fallback: rate.NewLimiter(20, 20),
	}
}

func (f *HTTPFetcher) limiter(u *url.URL) *rate.Limiter {
	if lim, ok := f.opts.HostLimits[u.Host]; ok {
		return lim
	}
	return f.fallback
}

// retryable reports whether a response status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// get issues a GET with per-host rate limiting, retrying transport errors,
// 429 and 5xx responses.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "http: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	lim := f.limiter(req.URL)
	log := zap.L().With(zap.String("url", rawURL))

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limit wait")
		}

		resp, err := f.client.Do(req)
		switch {
		case err != nil:
			lastErr = err
			log.Warn("http: request failed", zap.Int("attempt", attempt), zap.Error(err))
			f.sleep(ctx, f.delay(attempt, ""))
		case retryable(resp.StatusCode):
			after := resp.Header.Get("Retry-After")
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, rawURL)
			log.Warn("http: retryable status", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			f.sleep(ctx, f.delay(attempt, after))
		default:
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "http: cancelled")
		}
	}

	return nil, eris.Wrapf(lastErr, "http: all retries exhausted after %d attempts", f.opts.MaxRetries)
}

// delay returns the wait before the next attempt. A Retry-After value in
// seconds wins over exponential backoff.
func (f *HTTPFetcher) delay(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, maxRetryDelay)
	}
	d := min(f.opts.RetryDelay<<(attempt-1), maxRetryDelay)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

func (f *HTTPFetcher) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Download fetches rawURL and returns the response body. Any status other
// than 200 after retries is an error.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile streams rawURL into path. The body is written to
// path+".part" and renamed on success so an interrupted download never
// leaves a truncated file at path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	part := path + partSuffix
	file, err := os.Create(part)
	if err != nil {
		return 0, eris.Wrapf(err, "download: create %s", part)
	}

	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return n, eris.Wrapf(err, "download: write %s", part)
	}

	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return n, eris.Wrapf(err, "download: rename %s", part)
	}
	return n, nil
}
