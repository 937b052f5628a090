// Package http exposes the water-watch operations, health probes and
// Prometheus metrics over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

// WatchService is the set of core operations served by the API.
type WatchService interface {
	sharedobs.ReadinessChecker
	ClassifyAll(ctx context.Context) (domain.Classification, error)
	Latest(ctx context.Context) (domain.Classification, error)
	TimeSeriesForPoint(ctx context.Context, lon, lat float64) (domain.FeatureSeries, error)
	ForecastForPoint(ctx context.Context, lon, lat float64) (domain.FeatureSeries, error)
	ForecastForFeature(ctx context.Context, id string) (domain.FeatureSeries, error)
	TileDescriptorForPoint(ctx context.Context, lon, lat float64, ts time.Time) (domain.TileDescriptor, error)
	FeatureDetails(ctx context.Context, lon, lat float64) (domain.FeatureDetails, error)
	FeatureByID(ctx context.Context, id string) (domain.FeatureDetails, error)
	ListFeatures(ctx context.Context) []domain.FeatureSummary
}

const requestIDHeader = "X-Request-ID"

// Server exposes the API, /healthz, /readyz, and /metrics routes.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	svc        WatchService
	logger     *slog.Logger
}

// NewServer creates an HTTP server for svc. writeTimeout bounds a whole
// response and should exceed the service request timeout.
func NewServer(addr string, svc WatchService, writeTimeout time.Duration, logger *slog.Logger) *Server {
	r := mux.NewRouter()
	s := &Server{router: r, svc: svc, logger: logger}

	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(svc)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.requestID)
	api.HandleFunc("/ponds", s.handleListPonds).Methods(http.MethodGet)
	api.HandleFunc("/ponds/{id}", s.handlePond).Methods(http.MethodGet)
	api.HandleFunc("/ponds/{id}/forecast", s.handlePondForecast).Methods(http.MethodGet)
	api.HandleFunc("/classification", s.handleLatest).Methods(http.MethodGet)
	api.HandleFunc("/classification", s.handleClassify).Methods(http.MethodPost)
	api.HandleFunc("/details", s.handleDetails).Methods(http.MethodGet)
	api.HandleFunc("/timeseries", s.handleTimeSeries).Methods(http.MethodGet)
	api.HandleFunc("/forecast", s.handleForecast).Methods(http.MethodGet)
	api.HandleFunc("/tiles", s.handleTiles).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	h = handlers.CompressHandler(h)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// AccessLog wraps the server handler with a combined-format access log.
func (s *Server) AccessLog() {
	s.httpServer.Handler = handlers.CombinedLoggingHandler(os.Stdout, s.httpServer.Handler)
}

// requestID propagates or assigns an X-Request-ID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusFor maps an operation error onto its HTTP status.
func statusFor(err error) int {
	if domain.IsTimeout(err) {
		return http.StatusGatewayTimeout
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, domain.NewErrorPayload(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // the client may have gone away
}
