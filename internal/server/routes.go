package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	macdesigns "macdesigns"
	"macdesigns/internal/analytics"
	"macdesigns/internal/contact"
	"macdesigns/internal/gate"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(cacheControl("no-store"))
		r.Use(s.identify)

		r.Get("/gate", s.handleGateState)
		r.With(s.rateLimited(s.rateLimit), bodyLimiter(1024)).Post("/gate", s.handleGateSubmit)
		r.Get("/gate/countdown", s.handleGateCountdown)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuthenticated)

			r.With(cacheControl("private, no-cache")).Get("/content", s.handleContent)

			r.Route("/contact", func(r chi.Router) {
				r.Use(s.rateLimited(s.rateLimit))
				r.With(bodyLimiter(16<<10)).Post("/email", s.handleContactEmail)
				r.With(bodyLimiter(4<<10)).Post("/sms", s.handleContactSMS)
				r.Get("/sms/health", s.handleContactHealth)
			})

			r.Route("/engagement", func(r chi.Router) {
				r.Use(bodyLimiter(4 << 10))
				r.Post("/section", s.handleSectionView)
				r.Post("/keys", s.handleKeys)
				r.Post("/clicks", s.handleClicks)
			})
		})
	})

	r.Get("/*", s.handleSPA)

	return r
}

// newGate builds the gate for one request. The lock key is the profile, so
// every session of a profile shares one lockout record.
func (s *Server) newGate(r *http.Request, v visitor) *gate.Gate {
	return gate.New(gate.Options{
		Allowlist: s.currentAllowlist(),
		States:    s.states.For(v.ProfileID),
		Flag:      s.sessions.Flag(v.SessionID),
		Delay:     s.delay,
		IPs:       s.ipLookup(r),
		Clock:     s.clock,
		Locker:    s.locker,
		LockKey:   v.ProfileID,
		SessionID: v.SessionID,
		UserAgent: r.UserAgent(),
		OnAuthenticated: func() {
			s.track(v.SessionID, analytics.GateAccepted, "", nil)
		},
		Logger: s.logger.Named("gate"),
	})
}

// ipLookup resolves the visitor address from the connection and only asks the
// outbound service when the connection carries none.
func (s *Server) ipLookup(r *http.Request) gate.IPLookup {
	return gate.IPLookupFunc(func(ctx context.Context) (string, error) {
		if ip := s.cfIPs.ClientIP(r); ip != "" {
			return ip, nil
		}
		if s.outboundIP == nil {
			return gate.UnknownIP, nil
		}
		return s.outboundIP.Lookup(ctx)
	})
}

func (s *Server) track(sessionID, eventType, subject string, meta map[string]any) {
	if err := s.collector.Track(sessionID, eventType, subject, meta); err != nil {
		s.logger.Debug("drop analytics event", zap.String("event_type", eventType), zap.Error(err))
	}
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Health(r.Context()); err != nil {
		s.logger.Warn("health check", zap.Error(err))
		jsonError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	jsonOK(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// --- Gate ---

type gateStateResponse struct {
	State             string `json:"state"`
	RemainingSeconds  int    `json:"remaining_seconds"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	SessionID         string `json:"session_id"`
}

func (s *Server) handleGateState(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r)
	d := s.newGate(r, v).CheckAccess(r.Context())
	jsonOK(w, gateStateResponse{
		State:             d.Kind.String(),
		RemainingSeconds:  d.RemainingSeconds,
		AttemptsRemaining: d.AttemptsRemaining,
		SessionID:         v.SessionID,
	})
}

func (s *Server) handleGateSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		jsonError(w, "bad request", http.StatusBadRequest)
		return
	}

	v := visitorFrom(r)
	res, err := s.newGate(r, v).SubmitPassword(r.Context(), req.Password)
	if err != nil {
		// The visitor left during the delay; nothing was recorded.
		s.logger.Debug("gate submission abandoned", zap.String("session_id", v.SessionID), zap.Error(err))
		jsonError(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}

	switch res.Kind {
	case gate.Accepted:
		jsonOK(w, map[string]any{"status": res.Kind.String()})
	case gate.Rejected:
		s.track(v.SessionID, analytics.GateRejected, "", map[string]any{"attempts_remaining": res.AttemptsRemaining})
		jsonStatus(w, http.StatusUnauthorized, map[string]any{
			"status":             res.Kind.String(),
			"error":              "incorrect password",
			"attempts_remaining": res.AttemptsRemaining,
		})
	case gate.Blocked:
		s.track(v.SessionID, analytics.GateBlocked, "", map[string]any{"lockout_seconds": res.LockoutSeconds})
		jsonStatus(w, http.StatusLocked, map[string]any{
			"status":          res.Kind.String(),
			"error":           "too many failed attempts",
			"lockout_seconds": res.LockoutSeconds,
		})
	}
}

// handleGateCountdown streams the lockout countdown as server-sent events: one
// "tick" per interval, then "unlocked". The timer stops when the client leaves
// or the server shuts down; neither sends "unlocked".
func (s *Server) handleGateCountdown(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()
	g := s.newGate(r, visitorFrom(r))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, remaining int) {
		writeEvent(w, event, map[string]int{"remaining_seconds": remaining})
		flusher.Flush()
	}

	d := g.CheckAccess(ctx)
	if d.Kind != gate.ShowLockoutCountdown {
		send("unlocked", 0)
		return
	}
	send("tick", d.RemainingSeconds)

	ticks := make(chan int, 1)
	cd := gate.StartCountdown(ctx, g, s.tickInterval, func(remaining int) {
		select {
		case ticks <- remaining:
		case <-ctx.Done():
		}
	})
	defer func() {
		cancel()
		cd.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case remaining := <-ticks:
			send("tick", remaining)
			if remaining == 0 {
				send("unlocked", 0)
				return
			}
		case <-cd.Done():
			if ctx.Err() != nil {
				return
			}
			select {
			case remaining := <-ticks:
				send("tick", remaining)
			default:
			}
			send("unlocked", 0)
			return
		}
	}
}

// --- Content ---

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	portfolio, etag := s.rendered, s.etag
	s.mu.RUnlock()

	if etag != "" {
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	site := s.site.Get()
	jsonOK(w, map[string]any{
		"title":   site.Title,
		"owner":   site.Owner,
		"content": portfolio,
	})
}

// --- Contact ---

func (s *Server) handleContactEmail(w http.ResponseWriter, r *http.Request) {
	var form contact.EmailForm
	if err := decodeJSONBody(r, &form); err != nil {
		jsonError(w, "bad request", http.StatusBadRequest)
		return
	}
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	recipient := s.recipient
	s.mu.RUnlock()

	s.track(visitorFrom(r).SessionID, analytics.ContactEmail, "", nil)
	jsonOK(w, map[string]any{
		"mailto": form.Mailto(recipient),
		"body":   form.Body(),
	})
}

func (s *Server) handleContactSMS(w http.ResponseWriter, r *http.Request) {
	var req contact.SMSRequest
	if err := decodeJSONBody(r, &req); err != nil {
		jsonError(w, "bad request", http.StatusBadRequest)
		return
	}

	res := s.contact.SendSMS(r.Context(), req)
	switch {
	case res.Success:
		s.track(visitorFrom(r).SessionID, analytics.ContactSMS, string(res.Mode), nil)
		jsonOK(w, res)
	case res.Invalid:
		jsonStatus(w, http.StatusBadRequest, res)
	default:
		jsonStatus(w, http.StatusBadGateway, res)
	}
}

func (s *Server) handleContactHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, s.contact.Health(r.Context()))
}

// --- Engagement ---

func (s *Server) handleSectionView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Section string `json:"section"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		jsonError(w, "bad request", http.StatusBadRequest)
		return
	}

	v := visitorFrom(r)
	a, unlocked, err := s.achievements.Unlock(r.Context(), v.SessionID, req.Section)
	if errors.Is(err, analytics.ErrUnknownSection) {
		jsonError(w, "unknown section", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("unlock achievement", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.track(v.SessionID, analytics.SectionView, req.Section, nil)
	resp := map[string]any{"section": req.Section}
	if unlocked {
		s.track(v.SessionID, analytics.AchievementUnlocked, a.ID, nil)
		resp["achievement"] = a
	}
	jsonOK(w, resp)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		jsonError(w, "bad request", http.StatusBadRequest)
		return
	}

	v := visitorFrom(r)
	egg, found := s.eggs.Keys(v.SessionID, req.Codes)
	s.respondEgg(w, v, egg, found)
}

func (s *Server) handleClicks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		jsonError(w, "bad request", http.StatusBadRequest)
		return
	}

	v := visitorFrom(r)
	egg, found := s.eggs.Clicks(req.Count)
	s.respondEgg(w, v, egg, found)
}

func (s *Server) respondEgg(w http.ResponseWriter, v visitor, egg analytics.EasterEgg, found bool) {
	if !found {
		jsonOK(w, map[string]any{"found": false})
		return
	}
	s.track(v.SessionID, analytics.EasterEggFound, egg.ID, nil)
	jsonOK(w, map[string]any{"found": true, "easter_egg": egg})
}

// --- SPA ---

func (s *Server) handleSPA(w http.ResponseWriter, r *http.Request) {
	staticFS, err := fs.Sub(macdesigns.StaticFS, "static")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	if info, err := fs.Stat(staticFS, path); err != nil || info.IsDir() {
		// Unknown paths are client-side routes.
		path = "index.html"
	}

	if path == "index.html" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	http.ServeFileFS(w, r, staticFS, path)
}
