package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/RicardoG06/BancaInternet/internal/accounts"
	"github.com/RicardoG06/BancaInternet/internal/domain"
	"github.com/RicardoG06/BancaInternet/internal/store"
	"github.com/RicardoG06/BancaInternet/internal/transfer"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bank_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_transfers_total",
		Help: "Transfer outcomes by result kind",
	}, []string{"outcome"})
)

type Handler struct {
	engine *transfer.Engine
	reader *accounts.Reader
	log    *zap.Logger
}

func NewHandler(engine *transfer.Engine, reader *accounts.Reader, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, reader: reader, log: log}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers"))
	defer timer.ObserveDuration()

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/transfers", "400").Inc()
		respondError(w, r, http.StatusBadRequest, "Bad Request", "Invalid JSON in request body")
		return
	}

	// The body field wins; the header is honored for clients that follow
	// the Idempotency-Key convention instead.
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	result, replay, err := h.engine.ExecuteTransfer(r.Context(), RequestorID(r.Context()), req)
	if err != nil {
		status, kind, msg := mapError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("transfer failed",
				zap.String("correlationId", CorrelationID(r.Context())),
				zap.Error(err))
		}
		transfersTotal.WithLabelValues(kind).Inc()
		httpRequestsTotal.WithLabelValues("POST", "/transfers", strconv.Itoa(status)).Inc()
		respondError(w, r, status, kind, msg)
		return
	}

	if replay != nil {
		transfersTotal.WithLabelValues("replay").Inc()
		httpRequestsTotal.WithLabelValues("POST", "/transfers", "200").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(replay.Result)
		return
	}

	transfersTotal.WithLabelValues("completed").Inc()
	httpRequestsTotal.WithLabelValues("POST", "/transfers", "201").Inc()
	respondJSON(w, r, http.StatusCreated, result)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accs, summary, err := h.reader.ListAccounts(r.Context(), RequestorID(r.Context()))
	if err != nil {
		h.respondMapped(w, r, "GET", "/accounts", err)
		return
	}

	if accs == nil {
		accs = []domain.Account{}
	}
	httpRequestsTotal.WithLabelValues("GET", "/accounts", "200").Inc()
	respondJSON(w, r, http.StatusOK, map[string]any{
		"accounts":      accs,
		"summary":       summary,
		"correlationId": CorrelationID(r.Context()),
	})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	q := store.LedgerQuery{Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}/transactions", "400").Inc()
			respondError(w, r, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	for param, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if raw := r.URL.Query().Get(param); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}/transactions", "400").Inc()
				respondError(w, r, http.StatusBadRequest, "Bad Request", param+" must be an RFC3339 timestamp")
				return
			}
			*dst = t
		}
	}

	txs, summary, hasMore, err := h.reader.History(r.Context(), RequestorID(r.Context()), accountID, q)
	if err != nil {
		h.respondMapped(w, r, "GET", "/accounts/{id}/transactions", err)
		return
	}

	if txs == nil {
		txs = []domain.Transaction{}
	}
	httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}/transactions", "200").Inc()
	respondJSON(w, r, http.StatusOK, map[string]any{
		"accountId":     accountID,
		"transactions":  txs,
		"summary":       summary,
		"pagination":    map[string]any{"limit": q.Limit, "hasMore": hasMore},
		"correlationId": CorrelationID(r.Context()),
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := h.reader.Profile(r.Context(), RequestorID(r.Context()))
	if err != nil {
		h.respondMapped(w, r, "GET", "/profile", err)
		return
	}

	httpRequestsTotal.WithLabelValues("GET", "/profile", "200").Inc()
	respondJSON(w, r, http.StatusOK, map[string]any{
		"profile":       prof,
		"correlationId": CorrelationID(r.Context()),
	})
}

func (h *Handler) respondMapped(w http.ResponseWriter, r *http.Request, method, endpoint string, err error) {
	status, kind, msg := mapError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("endpoint", endpoint),
			zap.String("correlationId", CorrelationID(r.Context())),
			zap.Error(err))
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	respondError(w, r, status, kind, msg)
}

// mapError translates the domain error taxonomy into a status code, a
// stable machine-readable kind, and a human-readable message. Unrecognized
// errors never leak internals: they collapse to a generic 500.
func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, "Bad Request", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized", "Customer ID not found in token"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden", "Account does not belong to current user"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "Not Found", "Account not found"
	case errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound, "Not Found", "Profile not found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient Funds", "Insufficient balance in source account"
	case errors.Is(err, domain.ErrDailyLimitExceeded):
		return http.StatusBadRequest, "Daily Limit Exceeded", "Transfer amount exceeds remaining daily limit"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict", "Account was modified concurrently, retry the request"
	default:
		return http.StatusInternalServerError, "Internal server error", "An unexpected error occurred"
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, code int, kind, message string) {
	respondJSON(w, r, code, map[string]string{
		"error":         kind,
		"message":       message,
		"correlationId": CorrelationID(r.Context()),
	})
}
