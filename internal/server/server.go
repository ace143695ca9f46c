package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"macdesigns/internal/analytics"
	"macdesigns/internal/auth"
	"macdesigns/internal/config"
	"macdesigns/internal/contact"
	"macdesigns/internal/content"
	"macdesigns/internal/database"
	"macdesigns/internal/gate"
	"macdesigns/internal/store"
)

// Server is the main HTTP server.
type Server struct {
	httpServer   *http.Server
	db           *database.DB
	site         *config.Manager
	profiles     *auth.ProfileTokens
	sessions     *auth.SessionStore
	states       *store.SecurityStates
	locker       *gate.Locker
	cfIPs        *auth.CloudflareIPs
	outboundIP   gate.IPLookup
	collector    *analytics.Collector
	achievements *analytics.AchievementStore
	eggs         *analytics.EggDetector
	contact      *contact.Service
	delay        gate.Delayer
	clock        func() time.Time
	tickInterval time.Duration
	rateLimit    int
	logger       *zap.Logger
	startedAt    time.Time

	// streams is cancelled when shutdown begins so long-lived event streams end.
	streams     context.Context
	stopStreams context.CancelFunc

	mu        sync.RWMutex
	allowlist *gate.Allowlist
	rendered  content.Portfolio
	etag      string
	recipient string
}

// Config holds server configuration.
type Config struct {
	ListenAddr string
	DB         *database.DB
	Site       *config.Manager
	Profiles   *auth.ProfileTokens
	Contact    *contact.Service

	// CloudflareIPs resolves client addresses behind the edge. Nil trusts
	// RemoteAddr only.
	CloudflareIPs *auth.CloudflareIPs

	// IPLookupURL is queried only when the request carries no usable address.
	IPLookupURL string

	RateLimitPerMinute int

	// Delay, Clock and TickInterval default to the gate's production values.
	Delay        gate.Delayer
	Clock        func() time.Time
	TickInterval time.Duration

	Logger *zap.Logger
}

// New creates a Server with all dependencies wired.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		db:           cfg.DB,
		site:         cfg.Site,
		profiles:     cfg.Profiles,
		sessions:     auth.NewSessionStore(cfg.DB, logger.Named("sessions")),
		states:       store.NewSecurityStates(cfg.DB),
		locker:       gate.NewLocker(),
		cfIPs:        cfg.CloudflareIPs,
		collector:    analytics.NewCollector(cfg.DB, logger),
		achievements: analytics.NewAchievementStore(cfg.DB),
		eggs:         analytics.NewEggDetector(analytics.KeyWindowTTL),
		contact:      cfg.Contact,
		delay:        cfg.Delay,
		clock:        cfg.Clock,
		tickInterval: cfg.TickInterval,
		rateLimit:    cfg.RateLimitPerMinute,
		logger:       logger,
		startedAt:    time.Now().UTC(),
	}
	if cfg.IPLookupURL != "" {
		s.outboundIP = gate.NewHTTPLookup(cfg.IPLookupURL)
	}
	if s.delay == nil {
		s.delay = gate.DefaultDelay()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.tickInterval <= 0 {
		s.tickInterval = gate.TickInterval
	}
	if s.rateLimit <= 0 {
		s.rateLimit = 20
	}
	if s.contact == nil {
		s.contact = contact.NewService(nil, contact.NewDemoNotifier(logger), "", logger)
	}
	s.streams, s.stopStreams = context.WithCancel(context.Background())
	s.ApplySite(cfg.Site.Get())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // the countdown stream stays open for up to the lockout duration
		IdleTimeout:       120 * time.Second,
	}
	// Shutdown does not cancel request contexts, so open streams are ended here.
	s.httpServer.RegisterOnShutdown(s.stopStreams)
	return s
}

// ApplySite swaps in a new allowlist and content. It is the site watcher's
// reload hook.
func (s *Server) ApplySite(site config.Site) {
	rendered := content.Render(site.Content)
	etag := content.ETag(rendered)

	s.mu.Lock()
	s.allowlist = gate.NewAllowlist(site.Passwords...)
	s.rendered = rendered
	s.etag = etag
	s.recipient = site.Contact.Email
	s.mu.Unlock()

	s.logger.Info("site applied",
		zap.Int("passwords", len(site.Passwords)),
		zap.Int("projects", len(site.Content.Projects)))
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down all components.
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown", zap.Error(err))
	}
	s.close()
}

func (s *Server) close() {
	s.stopStreams()
	s.collector.Close()
	s.eggs.Close()
	s.sessions.Close()
}

func (s *Server) currentAllowlist() *gate.Allowlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowlist
}

// Helper functions

func jsonError(w http.ResponseWriter, message string, code int) {
	jsonStatus(w, code, map[string]any{"error": message})
}

func jsonOK(w http.ResponseWriter, data any) {
	jsonStatus(w, http.StatusOK, data)
}

func jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// bodyLimiter middleware limits the request body size.
func bodyLimiter(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	var extra struct{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON payload")
	}
	return nil
}
