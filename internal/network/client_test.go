package network

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLookupConfig(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"explicit", 10 * time.Second, 10 * time.Second},
		{"zero uses default", 0, 30 * time.Second},
		{"negative uses default", -time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := LookupConfig(tt.timeout)
			if config.Timeout != tt.want {
				t.Errorf("Timeout = %v, want %v", config.Timeout, tt.want)
			}
			if config.ResponseHeaderTimeout != tt.want {
				t.Errorf("ResponseHeaderTimeout = %v, want %v", config.ResponseHeaderTimeout, tt.want)
			}
		})
	}
}

func TestTransferConfigHasNoOverallTimeout(t *testing.T) {
	client := NewClient(TransferConfig())

	if client.Timeout != 0 {
		t.Errorf("Expected no overall timeout, got %v", client.Timeout)
	}
}

func TestNewClientWithNilConfig(t *testing.T) {
	client := NewClient(nil)

	if client == nil {
		t.Fatal("Expected client to be created with default config")
	}
	if client.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.Timeout)
	}
}

func TestConnectionPoolingSettings(t *testing.T) {
	config := LookupConfig(0)
	config.UserAgent = ""
	client := NewClient(config)

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("Expected transport to be *http.Transport without a user agent")
	}
	if transport.MaxIdleConnsPerHost != config.MaxIdleConnsPerHost {
		t.Errorf("Expected MaxIdleConnsPerHost %d, got %d", config.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	}
	if transport.MaxConnsPerHost != config.MaxConnsPerHost {
		t.Errorf("Expected MaxConnsPerHost %d, got %d", config.MaxConnsPerHost, transport.MaxConnsPerHost)
	}
}

func TestUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewClient(LookupConfig(time.Second))

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if got != UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "custom")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if got != "custom" {
		t.Errorf("Expected caller's User-Agent to win, got %q", got)
	}
}

func TestSharedTransferClient(t *testing.T) {
	if SharedTransferClient() != SharedTransferClient() {
		t.Error("Expected SharedTransferClient to return same instance")
	}
}
