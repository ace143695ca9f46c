package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultIPLookupURL returns {"ip": "..."} for the caller.
const DefaultIPLookupURL = "https://api.ipify.org?format=json"

// UnknownIP is recorded when the lookup fails.
const UnknownIP = "unknown"

// IPLookup resolves a best-effort IP address for the record. Purely informational.
type IPLookup interface {
	Lookup(ctx context.Context) (string, error)
}

// IPLookupFunc adapts a function to IPLookup.
type IPLookupFunc func(ctx context.Context) (string, error)

func (f IPLookupFunc) Lookup(ctx context.Context) (string, error) { return f(ctx) }

// HTTPLookup queries a public "what is my IP" endpoint.
type HTTPLookup struct {
	URL    string
	Client *http.Client
}

// NewHTTPLookup returns a lookup against url with a short client timeout.
func NewHTTPLookup(url string) *HTTPLookup {
	if url == "" {
		url = DefaultIPLookupURL
	}
	return &HTTPLookup{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup performs the GET and decodes the ip field.
func (l *HTTPLookup) Lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build ip lookup request: %w", err)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode ip lookup: %w", err)
	}

	ip := strings.TrimSpace(body.IP)
	if ip == "" {
		return "", errors.New("ip lookup: empty ip")
	}
	return ip, nil
}
