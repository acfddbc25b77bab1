package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TirthC27/HealthID/pkg/monitoring"
	"github.com/TirthC27/HealthID/pkg/types"
)

type contextKey string

const claimsContextKey contextKey = "user_claims"

// responseRecorder captures the status code written by a handler
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// corsMiddleware handles CORS headers
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Configure appropriately for production
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests and records HTTP metrics
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		s.logger.HTTPRequest(r.Method, r.URL.Path, r.RemoteAddr, recorder.statusCode, duration.Milliseconds())
		monitoring.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode), duration.Seconds())
	})
}

// authMiddleware validates session tokens and attaches the user claims
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Missing authorization token", nil)
			return
		}

		claims, err := s.directory.ValidateSession(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid session", err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromRequest returns the authenticated user's claims
func claimsFromRequest(r *http.Request) (*types.UserClaims, bool) {
	claims, ok := r.Context().Value(claimsContextKey).(*types.UserClaims)
	return claims, ok
}
