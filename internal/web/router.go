package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/metrics", promhttp.Handler().(http.HandlerFunc))
	r.Get("/healthz", s.handleHealthCheck)

	r.Get("/", s.handleForm)
	r.Post("/export", s.handleFormExport)
	r.Post("/api/export", s.handleAPIExport)

	return r
}
