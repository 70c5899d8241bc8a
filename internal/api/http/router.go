package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/security"
	"carrental-backend/internal/service"
)

// NewRouter wires the public health check and the authenticated /api/v1 routes.
func NewRouter(bookingSvc service.BookingService, walletSvc service.WalletService, carRepo repository.CarRepository, tm security.TokenManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(NewAuthMiddleware(tm).Handler)
	NewBookingHandler(bookingSvc, carRepo).Register(api)
	NewWalletHandler(walletSvc).Register(api)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("HTTP request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}
