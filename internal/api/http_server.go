package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sobytnik/internal/config"
	"sobytnik/internal/domain"
	"sobytnik/internal/export"
	"sobytnik/internal/metrics"
	"sobytnik/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer — внешняя поверхность движка бронирования для внутренних
// сервисов (личный кабинет, CRM). Аутентификация по API-ключам; конечный
// пользователь передается идентификатором в теле или параметрах запроса.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings *service.BookingService
	events   domain.EventStore
	users    domain.UserDirectory
	store    domain.BookingStore
	exporter *export.Exporter
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings *service.BookingService,
	events domain.EventStore,
	users domain.UserDirectory,
	store domain.BookingStore,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		events:   events,
		users:    users,
		store:    store,
		exporter: exporter,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("DELETE /api/v1/bookings", srv.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/reservations", srv.handleCreateReservations)
	mux.HandleFunc("POST /api/v1/attendance", srv.handleMarkAttendance)
	mux.HandleFunc("POST /api/v1/events/{id}/promote", srv.handlePromote)
	mux.HandleFunc("GET /api/v1/events/{id}", srv.handleGetEvent)
	mux.HandleFunc("GET /api/v1/events/{id}/bookings", srv.handleListBookings)
	mux.HandleFunc("POST /api/v1/events/{id}/bookings/export", srv.handleExportRoster)

	auth := NewHTTPAuth(cfg)
	handler := srv.loggingMiddleware(auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.Method + " " + r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
