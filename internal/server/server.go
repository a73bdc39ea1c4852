// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/handler"
	"vitalwatch/internal/middleware"
)

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

type Handlers struct {
	Vitals    *handler.VitalsHandler
	Alerts    *handler.AlertHandler
	Health    *handler.HealthHandler
	Websocket *handler.WebsocketHandler
}

func New(cfg *config.Config, handlers *Handlers, log *zap.Logger) *Server {
	router := mux.NewRouter()

	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.Security.CORSAllowedOrigins, cfg.Security.CORSAllowedMethods))
	if cfg.Security.EnableRateLimit {
		router.Use(middleware.RateLimit(cfg.Security.RateLimitPerMinute))
	}

	router.HandleFunc("/health", handlers.Health.Check).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	auth := middleware.Auth(cfg.Security.JWTSecret)

	router.Handle("/ws", auth(http.HandlerFunc(handlers.Websocket.Serve))).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth)

	api.HandleFunc("/vitals", handlers.Vitals.RecordReading).Methods(http.MethodPost)
	api.HandleFunc("/patients/{id}/vitals", handlers.Vitals.PatientHistory).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}/vitals/latest", handlers.Vitals.LatestReading).Methods(http.MethodGet)

	api.HandleFunc("/alerts", handlers.Alerts.Create).Methods(http.MethodPost)
	api.HandleFunc("/alerts", handlers.Alerts.List).Methods(http.MethodGet)
	api.HandleFunc("/alerts/stats", handlers.Alerts.Stats).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}", handlers.Alerts.Get).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/resolve", handlers.Alerts.Resolve).Methods(http.MethodPut)
	api.HandleFunc("/alerts/{id}/acknowledge", handlers.Alerts.Acknowledge).Methods(http.MethodPut)
	api.HandleFunc("/alerts/{id}/escalate", handlers.Alerts.Escalate).Methods(http.MethodPut)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
