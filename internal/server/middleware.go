package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"macdesigns/internal/auth"
)

const (
	profileCookie = "macdesigns_profile"
	sessionCookie = "macdesigns_session"
)

type contextKey string

const visitorKey contextKey = "visitor"

// visitor identifies the browser profile and tab session behind a request.
type visitor struct {
	ProfileID     string
	SessionID     string
	Authenticated bool
}

func visitorFrom(r *http.Request) visitor {
	v, _ := r.Context().Value(visitorKey).(visitor)
	return v
}

// identify resolves the profile and session cookies, minting either when
// absent or invalid. A session belongs to exactly one profile.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		secure := isSecureRequest(r)

		var v visitor
		if c, err := r.Cookie(profileCookie); err == nil && c.Value != "" {
			if id, err := s.profiles.Parse(c.Value); err == nil {
				v.ProfileID = id
			}
		}
		if v.ProfileID == "" {
			v.ProfileID = auth.NewProfileID()
			token, err := s.profiles.Issue(v.ProfileID)
			if err != nil {
				s.logger.Error("issue profile token", zap.Error(err))
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     profileCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   s.profiles.MaxAge(),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			sess, ok, err := s.sessions.ValidateSession(ctx, c.Value)
			if err != nil {
				s.logger.Error("validate session", zap.Error(err))
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			if ok && sess.ProfileID == v.ProfileID {
				v.SessionID = sess.ID
				v.Authenticated = sess.Authenticated
			}
		}
		if v.SessionID == "" {
			sess, err := s.sessions.CreateSession(ctx, v.ProfileID, s.cfIPs.ClientIP(r))
			if err != nil {
				s.logger.Error("create session", zap.Error(err))
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			v.SessionID = sess.ID
			// No Max-Age: the browser drops it when the browsing session ends.
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteStrictMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, visitorKey, v)))
	})
}

// requireAuthenticated admits sessions that passed the gate.
func (s *Server) requireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := visitorFrom(r)
		if v.Authenticated {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := s.sessions.IsAuthenticated(r.Context(), v.SessionID)
		if err != nil {
			s.logger.Error("read authentication flag", zap.Error(err))
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited throttles per client address.
func (s *Server) rateLimited(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return s.cfIPs.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
		}),
	)
}

func isSecureRequest(r *http.Request) bool {
	return requestScheme(r) == "https"
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		if i := strings.Index(proto, ","); i > 0 {
			proto = proto[:i]
		}
		proto = strings.TrimSpace(strings.ToLower(proto))
		if proto == "http" || proto == "https" {
			return proto
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// securityHeaders sets secure defaults for every response.
func securityHeaders(next http.Handler) http.Handler {
	const csp = "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data: https:; connect-src 'self'; font-src 'self'; object-src 'none'; base-uri 'none'; frame-ancestors 'none'; form-action 'self'"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Permissions-Policy", "accelerometer=(), camera=(), geolocation=(), gyroscope=(), microphone=(), payment=(), usb=()")
		h.Set("Content-Security-Policy", csp)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs HTTP requests.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.URL.Path == "/healthz" && wrapped.status < http.StatusBadRequest {
			return
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.status),
			zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so event streams are not buffered.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// cacheControl sets the Cache-Control header.
func cacheControl(value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
