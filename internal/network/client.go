package network

import (
	"net/http"
	"sync"
	"time"
)

// UserAgent identifies trackdl to the source and the audio hosts
const UserAgent = "trackdl/0.1"

var (
	transferClient     *http.Client
	transferClientOnce sync.Once
)

// ClientConfig describes one HTTP client profile
type ClientConfig struct {
	Timeout               time.Duration // whole request; 0 means none
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	UserAgent             string
}

// LookupConfig suits the small JSON calls made to the source service
func LookupConfig(timeout time.Duration) *ClientConfig {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClientConfig{
		Timeout:               timeout,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		UserAgent:             UserAgent,
	}
}

// TransferConfig suits audio and cover downloads. A whole-request timeout
// would cut off large lossless files, so only the response header wait is
// bounded and the caller's context does the rest.
func TransferConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConnsPerHost:   2,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		UserAgent:             UserAgent,
	}
}

// NewClient builds a client for config; nil uses LookupConfig(0)
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = LookupConfig(0)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          config.MaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
	}

	var rt http.RoundTripper = transport
	if config.UserAgent != "" {
		rt = &userAgentTransport{base: transport, userAgent: config.UserAgent}
	}
	return &http.Client{Timeout: config.Timeout, Transport: rt}
}

// SharedTransferClient returns the process-wide client for file transfers
func SharedTransferClient() *http.Client {
	transferClientOnce.Do(func() {
		transferClient = NewClient(TransferConfig())
	})
	return transferClient
}

// userAgentTransport sets User-Agent on requests that do not carry one
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
