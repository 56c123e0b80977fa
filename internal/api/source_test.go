package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/deemusic/trackdl/internal/errors"
)

var testTrack = TrackKey{Source: "kw", ID: "12345"}

func newTestClient(t *testing.T, handler http.Handler) (*SourceClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultSourceConfig(server.URL)
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetries = 2
	cfg.RequestsPerSecond = 1000

	client, err := NewSourceClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewSourceClient failed: %v", err)
	}
	return client, server
}

func TestNewSourceClientInvalidURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		if _, err := NewSourceClient(DefaultSourceConfig(base), nil); err == nil {
			t.Errorf("Expected error for base URL %q", base)
		}
	}
}

func TestTrackKeyString(t *testing.T) {
	if got := testTrack.String(); got != "kw:12345" {
		t.Errorf("String() = %q, want kw:12345", got)
	}
}

func TestTrackInfo(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/track/info" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("source") != "kw" || r.URL.Query().Get("id") != "12345" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"qualities":[{"type":"128k","size":3000000},{"type":"flac","size":30000000}]}`))
	}))

	info, err := client.TrackInfo(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("TrackInfo failed: %v", err)
	}
	if len(info.Qualities) != 2 {
		t.Fatalf("Expected 2 qualities, got %d", len(info.Qualities))
	}
	if info.Qualities[1].Type != "flac" || info.Qualities[1].Size != 30000000 {
		t.Errorf("Unexpected quality %+v", info.Qualities[1])
	}

	// served from cache
	if _, err := client.TrackInfo(context.Background(), testTrack); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestTrackInfoValidation(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	_, err := client.TrackInfo(context.Background(), TrackKey{Source: "kw"})
	if apperrors.GetErrorType(err) != apperrors.ErrTypeValidation {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestTrackInfoRetriesServerErrors(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"qualities":[{"type":"320k","size":1}]}`))
	}))

	info, err := client.TrackInfo(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("TrackInfo failed after retries: %v", err)
	}
	if len(info.Qualities) != 1 {
		t.Errorf("Expected 1 quality, got %d", len(info.Qualities))
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestTrackInfoGivesUp(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.TrackInfo(context.Background(), testTrack)
	if !apperrors.IsNetworkError(err) {
		t.Errorf("Expected network error, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("Expected 3 requests (1 + 2 retries), got %d", n)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.ErrorType
	}{
		{http.StatusNotFound, apperrors.ErrTypeNotFound},
		{http.StatusTooManyRequests, apperrors.ErrTypeRateLimit},
		{http.StatusInternalServerError, apperrors.ErrTypeNetwork},
		{http.StatusBadRequest, apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		rec.WriteHeader(tt.status)
		rec.Body.WriteString(`{"message":"nope"}`)

		err := statusError(rec.Result())
		if got := apperrors.GetErrorType(err); got != tt.want {
			t.Errorf("status %d: got %s, want %s", tt.status, got, tt.want)
		}
	}

	ok := httptest.NewRecorder()
	if err := statusError(ok.Result()); err != nil {
		t.Errorf("200 should not be an error: %v", err)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "2")
	rec.WriteHeader(http.StatusTooManyRequests)

	err := statusError(rec.Result())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %v", err)
	}
	if appErr.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", appErr.RetryAfter)
	}

	for _, v := range []string{"", "soon", "-1"} {
		if d := retryAfter(v); d != 0 {
			t.Errorf("retryAfter(%q) = %v, want 0", v, d)
		}
	}
}

func TestResolveURLNeverCached(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		q := r.URL.Query()
		if q.Get("quality") != "320k" || q.Get("refresh") != "1" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"url":"https://cdn.example.com/a.mp3"}`))
	}))

	for i := 0; i < 2; i++ {
		u, err := client.ResolveURL(context.Background(), testTrack, "320k", true)
		if err != nil {
			t.Fatalf("ResolveURL failed: %v", err)
		}
		if u != "https://cdn.example.com/a.mp3" {
			t.Errorf("Unexpected url %q", u)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("Expected 2 requests, got %d", n)
	}
}

func TestResolveURLNotRetried(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if _, err := client.ResolveURL(context.Background(), testTrack, "320k", true); err == nil {
		t.Fatal("Expected error")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected a single request, got %d", n)
	}
}

func TestResolveURLEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty body url", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"url":""}`)) }},
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			u, err := client.ResolveURL(context.Background(), testTrack, "flac", true)
			if err != nil {
				t.Fatalf("Expected nil error, got %v", err)
			}
			if u != "" {
				t.Errorf("Expected empty url, got %q", u)
			}
		})
	}
}

func TestResolveURLRequiresQuality(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := client.ResolveURL(context.Background(), testTrack, "", true); err == nil {
		t.Error("Expected error for empty quality")
	}
}

func TestLyric(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track/lyric" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"lyric":"[00:01.00]hi","tlyric":"[00:01.00]salut"}`))
	}))

	info, err := client.Lyric(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("Lyric failed: %v", err)
	}
	if info.Lyric != "[00:01.00]hi" || info.TLyric != "[00:01.00]salut" {
		t.Errorf("Unexpected lyric %+v", info)
	}
}

func TestLyricNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	info, err := client.Lyric(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if info.Lyric != "" {
		t.Errorf("Expected empty lyric, got %q", info.Lyric)
	}
}

func TestCoverURL(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"url":" https://img.example.com/c.jpg "}`))
	}))

	for i := 0; i < 2; i++ {
		u, err := client.CoverURL(context.Background(), testTrack)
		if err != nil {
			t.Fatalf("CoverURL failed: %v", err)
		}
		if u != "https://img.example.com/c.jpg" {
			t.Errorf("Unexpected url %q", u)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.TrackInfo(ctx, testTrack); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
