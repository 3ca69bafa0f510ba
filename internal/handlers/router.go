package handlers

import (
	"net/http"
	"time"

	"session-tracker/internal/auth"
	"session-tracker/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	Sessions    *SessionHandlers
	WebSocket   *WebSocketHandlers
	Auth        *auth.Service
	Metrics     http.Handler
	MetricsPath string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-Address"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", Health)
		r.Get("/stats", cfg.Sessions.Stats)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", cfg.Sessions.ListSessions)
			r.With(cfg.Auth.Middleware).Post("/", cfg.Sessions.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Sessions.GetSession)
				r.With(cfg.Auth.Middleware).Delete("/", cfg.Sessions.DeleteSession)
				r.Get("/events", cfg.Sessions.GetSessionEvents)
			})
		})
	})

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics)
	}
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket.HandleWebSocket)
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.L().Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
