package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	ports "telegram-video-gen/internal/domain/ports/usecase"
	red "telegram-video-gen/internal/infra/redis"
)

// Server exposes the provider callback endpoint, the job status query API and
// the operational endpoints (health, metrics).
type Server struct {
	jobs    ports.VideoJobManager
	limiter *red.RateLimiter
	apiKey  string
	log     *zerolog.Logger
	srv     *http.Server
}

func NewServer(jobs ports.VideoJobManager, limiter *red.RateLimiter, apiKey string, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTP").Logger()
	return &Server{
		jobs:    jobs,
		limiter: limiter,
		apiKey:  apiKey,
		log:     &l,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit).Post("/callback/generation", s.handleGenerationCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/jobs/{id}", s.handleGetJob)
			r.Get("/jobs/by-task/{taskId}", s.handleGetJobByTask)
			r.Get("/users/{id}/jobs", s.handleListUserJobs)
		})
	})
	return r
}

func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// authMiddleware guards the status query API with a bearer key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("server.api_key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if parts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit bounds callback bursts per remote address. The limiter is
// best-effort: a Redis outage never rejects a notice.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ok, err := s.limiter.Allow(r.Context(), red.CallbackKey(remoteHost(r)), 120, time.Minute)
			if err == nil && !ok {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	if i := strings.LastIndex(r.RemoteAddr, ":"); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
