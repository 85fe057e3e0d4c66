package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RicardoG06/BancaInternet/internal/auth"
)

// NewRouter assembles the full HTTP surface. Health and metrics stay
// outside the authenticated subtree.
func NewRouter(h *Handler, verifier *auth.Verifier, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(WithCORS, WithCorrelation, WithLogging(log))

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(WithAuth(verifier))
	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/accounts/{id}/transactions", h.GetTransactions).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/profile", h.GetProfile).Methods(http.MethodGet, http.MethodOptions)

	return r
}
