package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/deemusic/trackdl/internal/errors"
	"github.com/deemusic/trackdl/internal/monitoring"
	"github.com/deemusic/trackdl/internal/network"
)

const (
	endpointInfo  = "info"
	endpointURL   = "url"
	endpointLyric = "lyric"
	endpointPic   = "pic"
)

// SourceConfig configures the music source client
type SourceConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	CacheSize         int
	CacheTTL          time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

// DefaultSourceConfig returns settings matching the config defaults
func DefaultSourceConfig(baseURL string) SourceConfig {
	return SourceConfig{
		BaseURL:           baseURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		CacheSize:         256,
		CacheTTL:          30 * time.Minute,
		MaxRetries:        3,
		RetryBackoff:      500 * time.Millisecond,
	}
}

// SourceClient talks to the music source HTTP service
type SourceClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	cache       *lru.LRU[string, any]
	retry       apperrors.RetryConfig
	logger      *zap.Logger
}

// NewSourceClient creates a new source client with connection pooling,
// rate limiting and a response cache
func NewSourceClient(cfg SourceConfig, logger *zap.Logger) (*SourceClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid source base URL: %q", cfg.BaseURL))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}

	clientCfg := network.LookupConfig(cfg.Timeout)

	retry := apperrors.DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		retry.InitialBackoff = cfg.RetryBackoff
		if retry.MaxBackoff < cfg.RetryBackoff {
			retry.MaxBackoff = cfg.RetryBackoff
		}
	}

	return &SourceClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  network.NewClient(clientCfg),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		cache:       lru.NewLRU[string, any](cfg.CacheSize, nil, cfg.CacheTTL),
		retry:       retry,
		logger:      logger,
	}, nil
}

// TrackInfo returns the quality variants the source offers for the track
func (c *SourceClient) TrackInfo(ctx context.Context, track TrackKey) (*TrackInfo, error) {
	if err := validateKey(track); err != nil {
		return nil, err
	}

	cacheKey := "info:" + track.String()
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*TrackInfo), nil
	}

	info, err := apperrors.Retry(ctx, c.retryFor(endpointInfo), func(ctx context.Context) (*TrackInfo, error) {
		var info TrackInfo
		return &info, c.getJSON(ctx, endpointInfo, trackParams(track), &info)
	})
	if err != nil {
		return nil, err
	}

	c.cache.Add(cacheKey, info)
	return info, nil
}

// ResolveURL exchanges a track and quality for a playable URL. An empty URL
// with a nil error means the source has no link for that quality. Results
// are never cached and failures are not retried.
func (c *SourceClient) ResolveURL(ctx context.Context, track TrackKey, quality string, refresh bool) (string, error) {
	if err := validateKey(track); err != nil {
		return "", err
	}
	if quality == "" {
		return "", apperrors.NewValidationError("quality cannot be empty")
	}

	params := trackParams(track)
	params.Set("quality", quality)
	if refresh {
		params.Set("refresh", "1")
	}

	var resp urlResponse
	if err := c.getJSON(ctx, endpointURL, params, &resp); err != nil {
		if apperrors.IsNotFoundError(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(resp.URL), nil
}

// Lyric returns the track's lyric. A track without lyrics yields an empty LyricInfo.
func (c *SourceClient) Lyric(ctx context.Context, track TrackKey) (*LyricInfo, error) {
	if err := validateKey(track); err != nil {
		return nil, err
	}

	cacheKey := "lyric:" + track.String()
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*LyricInfo), nil
	}

	info, err := apperrors.Retry(ctx, c.retryFor(endpointLyric), func(ctx context.Context) (*LyricInfo, error) {
		var info LyricInfo
		return &info, c.getJSON(ctx, endpointLyric, trackParams(track), &info)
	})
	if err != nil {
		if !apperrors.IsNotFoundError(err) {
			return nil, err
		}
		info = &LyricInfo{}
	}

	c.cache.Add(cacheKey, info)
	return info, nil
}

// CoverURL returns the track's cover image URL, or "" when there is none
func (c *SourceClient) CoverURL(ctx context.Context, track TrackKey) (string, error) {
	if err := validateKey(track); err != nil {
		return "", err
	}

	cacheKey := "pic:" + track.String()
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	picURL, err := apperrors.Retry(ctx, c.retryFor(endpointPic), func(ctx context.Context) (string, error) {
		var resp urlResponse
		err := c.getJSON(ctx, endpointPic, trackParams(track), &resp)
		return strings.TrimSpace(resp.URL), err
	})
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return "", nil
		}
		return "", err
	}

	c.cache.Add(cacheKey, picURL)
	return picURL, nil
}

// retryFor returns the retry policy for endpoint with attempt logging attached
func (c *SourceClient) retryFor(endpoint string) apperrors.RetryConfig {
	cfg := c.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Debug("Retrying source request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return cfg
}

func (c *SourceClient) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	reqURL := fmt.Sprintf("%s/track/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordSourceRequest(endpoint, "error", time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewNetworkError(fmt.Sprintf("%s request failed", endpoint), err)
	}
	defer resp.Body.Close()
	monitoring.RecordSourceRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if err := statusError(resp); err != nil {
		c.logger.Debug("Source request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewNetworkError("failed to read response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := fmt.Sprintf("source returned status %d", resp.StatusCode)
	var body errorResponse
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			msg = fmt.Sprintf("%s: %s", msg, body.Message)
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError(msg, retryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return apperrors.NewNetworkError(msg, nil)
	default:
		return apperrors.NewValidationError(msg)
	}
}

// retryAfter parses a Retry-After header given in seconds
func retryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func trackParams(track TrackKey) url.Values {
	params := url.Values{}
	params.Set("source", track.Source)
	params.Set("id", track.ID)
	return params
}

func validateKey(track TrackKey) error {
	if track.Source == "" || track.ID == "" {
		return apperrors.NewValidationError("track source and id are required")
	}
	return nil
}
