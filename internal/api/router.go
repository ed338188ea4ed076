package api

import (
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/query", h.GraphQL).Methods("POST")
	r.Handle("/playground", playground.Handler("GraphQL playground", "/query")).Methods("GET")

	r.HandleFunc("/members/{id}/qrcode", h.MemberQRCode).Methods("GET")
	r.HandleFunc("/credentials/{id}/qrcode", h.CredentialQRCode).Methods("GET")
	r.HandleFunc("/scan", h.Scan).Methods("POST")
	r.HandleFunc("/scan/regenerate", h.Regenerate).Methods("POST")

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}
