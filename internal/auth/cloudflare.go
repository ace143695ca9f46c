package auth

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCloudflareURLs publish Cloudflare's edge ranges.
var DefaultCloudflareURLs = []string{
	"https://www.cloudflare.com/ips-v4/",
	"https://www.cloudflare.com/ips-v6/",
}

// CloudflareIPs holds the known Cloudflare ranges so CF-Connecting-IP is only
// trusted from Cloudflare's own edge.
type CloudflareIPs struct {
	mu     sync.RWMutex
	nets   []*net.IPNet
	urls   []string
	client *http.Client
	logger *zap.Logger
	done   chan struct{}
	once   sync.Once
}

// NewCloudflareIPs fetches the ranges at urls and refreshes them daily. With no
// urls nothing is fetched and every request falls back to RemoteAddr.
func NewCloudflareIPs(urls []string, logger *zap.Logger) *CloudflareIPs {
	if logger == nil {
		logger = zap.NewNop()
	}
	cf := &CloudflareIPs{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		done:   make(chan struct{}),
	}
	if len(urls) > 0 {
		cf.refresh()
		go cf.refreshLoop()
	}
	return cf
}

// Close stops the refresh goroutine.
func (cf *CloudflareIPs) Close() {
	cf.once.Do(func() { close(cf.done) })
}

// IsTrusted reports whether ipStr falls inside a Cloudflare range.
func (cf *CloudflareIPs) IsTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	cf.mu.RLock()
	defer cf.mu.RUnlock()

	for _, n := range cf.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP extracts the visitor's address. Behind a trusted Cloudflare edge the
// CF-Connecting-IP header wins. A nil receiver uses RemoteAddr.
func (cf *CloudflareIPs) ClientIP(r *http.Request) string {
	remoteIP := extractIP(r.RemoteAddr)
	if cf == nil {
		return remoteIP
	}

	if cf.IsTrusted(remoteIP) {
		if cfIP := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cfIP != "" {
			return cfIP
		}
	}
	return remoteIP
}

func extractIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// SetRanges replaces the trusted ranges with the given CIDRs.
func (cf *CloudflareIPs) SetRanges(cidrs ...string) {
	nets := parseCIDRs(cidrs)
	cf.mu.Lock()
	cf.nets = nets
	cf.mu.Unlock()
}

func parseCIDRs(lines []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		_, cidr, err := net.ParseCIDR(line)
		if err != nil {
			continue
		}
		nets = append(nets, cidr)
	}
	return nets
}

func (cf *CloudflareIPs) refresh() {
	var lines []string

	for _, url := range cf.urls {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			continue
		}
		resp, err := cf.client.Do(req)
		if err != nil {
			cancel()
			cf.logger.Warn("fetch cloudflare ranges", zap.String("url", url), zap.Error(err))
			continue
		}
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		resp.Body.Close()
		cancel()
	}

	nets := parseCIDRs(lines)
	if len(nets) > 0 {
		cf.mu.Lock()
		cf.nets = nets
		cf.mu.Unlock()
		cf.logger.Info("cloudflare ranges loaded", zap.Int("count", len(nets)))
	}
}

func (cf *CloudflareIPs) refreshLoop() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cf.refresh()
		case <-cf.done:
			return
		}
	}
}
