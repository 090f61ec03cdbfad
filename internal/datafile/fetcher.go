// Package datafile fetches Optimizely datafiles from the CDN and keeps them for a bounded TTL.
//
// The cache is keyed by the full fetch URL. Only successful responses are cached, and
// concurrent misses on the same URL share a single origin request. The body is returned as
// text without any parsing; validating it is the decision engine's job.
package datafile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/TimurManjosov/flagedge/internal/backend"
	"github.com/TimurManjosov/flagedge/internal/telemetry"
)

// DefaultBaseURL is the Optimizely datafile CDN.
const DefaultBaseURL = "https://cdn.optimizely.com/datafiles"

// Doer sends a request through a named backend. *backend.Registry implements it.
type Doer interface {
	Do(backendName string, req *http.Request) (*http.Response, error)
}

type entry struct {
	body        string
	fingerprint uint64
	expiresAt   time.Time
}

// Fetcher retrieves datafiles through the CDN backend with TTL caching.
type Fetcher struct {
	baseURL string
	doer    Doer
	cache   *lru.Cache[string, entry]
	group   singleflight.Group
	now     func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(base string) Option {
	return func(f *Fetcher) { f.baseURL = base }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher returns a fetcher keeping up to cacheSize datafiles.
func NewFetcher(doer Doer, cacheSize int, opts ...Option) (*Fetcher, error) {
	cache, err := lru.New[string, entry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("datafile cache: %w", err)
	}
	f := &Fetcher{
		baseURL: DefaultBaseURL,
		doer:    doer,
		cache:   cache,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// URL returns the datafile location for sdkKey. An empty key is not rejected; it yields a
// URL the CDN answers with an error.
func (f *Fetcher) URL(sdkKey string) string {
	return f.baseURL + "/" + url.PathEscape(sdkKey) + ".json"
}

// Fetch returns the datafile for sdkKey, serving it from cache while it is younger than ttl.
// A ttl of zero or less disables caching for this call. Failures are never cached and are
// not retried.
func (f *Fetcher) Fetch(ctx context.Context, sdkKey string, ttl time.Duration) (string, error) {
	u := f.URL(sdkKey)
	log := zerolog.Ctx(ctx)

	if e, ok := f.cache.Get(u); ok && ttl > 0 && f.now().Before(e.expiresAt) {
		telemetry.ObserveDatafileFetch(telemetry.SourceCache, telemetry.ResultOK)
		log.Debug().Str("url", u).Msg("datafile served from cache")
		return e.body, nil
	}

	// The shared fetch outlives any single caller; each caller still stops waiting when its
	// own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(u, func() (any, error) {
		body, err := f.fetchOrigin(fetchCtx, u)
		if err != nil {
			telemetry.ObserveDatafileFetch(telemetry.SourceOrigin, telemetry.ResultError)
			return "", err
		}
		telemetry.ObserveDatafileFetch(telemetry.SourceOrigin, telemetry.ResultOK)

		fp := xxhash.Sum64String(body)
		if prev, ok := f.cache.Peek(u); !ok || prev.fingerprint != fp {
			log.Info().Str("url", u).Str("fingerprint", fmt.Sprintf("%016x", fp)).Msg("datafile revision loaded")
		}
		if ttl > 0 {
			f.cache.Add(u, entry{body: body, fingerprint: fp, expiresAt: f.now().Add(ttl)})
		}
		return body, nil
	})

	select {
	case <-ctx.Done():
		return "", &FetchError{URL: u, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug().Str("url", u).Msg("datafile fetch shared with concurrent request")
		}
		return res.Val.(string), nil
	}
}

// Purge drops the cached datafile for sdkKey, if any.
func (f *Fetcher) Purge(sdkKey string) {
	f.cache.Remove(f.URL(sdkKey))
}

func (f *Fetcher) fetchOrigin(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &FetchError{URL: u, Err: err}
	}

	resp, err := f.doer.Do(backend.CDN, req)
	if err != nil {
		return "", &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: u, Err: err}
	}
	return string(body), nil
}
