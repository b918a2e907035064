package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Routes mounts every endpoint behind the request logging middleware.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/nearbyPosts", h.HandleNearbyPosts)
	mux.HandleFunc("/api/posts", h.HandleGetPostsAPI)
	mux.HandleFunc("/healthz", h.HandleHealth)

	return h.logRequests(mux)
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		logger := h.logger.With().Str("request_id", requestID).Logger()
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, logger))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func (h *Handlers) requestLogger(r *http.Request) zerolog.Logger {
	if logger, ok := r.Context().Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return h.logger
}
