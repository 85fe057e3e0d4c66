package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RicardoG06/BancaInternet/internal/auth"
)

type ctxKey int

const (
	ctxKeyRequestor ctxKey = iota
	ctxKeyCorrelation
)

// RequestorID returns the authenticated customer ID placed by the auth
// middleware, or "" when the request was not authenticated.
func RequestorID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestor).(string)
	return id
}

// CorrelationID returns the request's correlation identifier.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCorrelation).(string)
	return id
}

// WithCorrelation propagates an inbound X-Correlation-Id or generates one,
// and echoes it on the response so every reply is traceable.
func WithCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get("X-Correlation-Id")
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", cid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyCorrelation, cid)))
	})
}

// WithLogging logs one line per request.
func WithLogging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("correlationId", CorrelationID(r.Context())),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// WithCORS mirrors the gateway's permissive CORS policy and short-circuits
// preflight requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,Idempotency-Key,X-Correlation-Id,X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "OPTIONS,GET,POST,PUT,DELETE")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithAuth verifies the bearer token and injects the sub claim as the
// requestor identity. Requests without a verifiable identity are rejected.
func WithAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				respondError(w, r, http.StatusUnauthorized, "Unauthorized", "Missing bearer token")
				return
			}

			sub, err := verifier.VerifySubject(token)
			if err != nil {
				respondError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestor, sub)))
		})
	}
}
