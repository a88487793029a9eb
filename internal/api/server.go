// Package api exposes booking sessions over JSON HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DirectoryLister serves the public directory listings.
type DirectoryLister interface {
	ListSpecialties(ctx context.Context) ([]model.Specialty, error)
	ListDoctors(ctx context.Context, specialtyID int64) ([]model.Doctor, error)
}

// Sessions is the subset of the session store used by the handlers.
type Sessions interface {
	Create(ctx context.Context, seed booking.Seed) (string, *booking.Wizard, error)
	Get(id string) (*booking.Wizard, error)
}

// HTTPServer hosts the wizard and directory endpoints.
type HTTPServer struct {
	sessions  Sessions
	directory DirectoryLister
	limiter   *ipLimiter
	logger    *zerolog.Logger
	server    *http.Server
}

// Options tunes the server.
type Options struct {
	SubmitPerMinute int
	SubmitBurst     int
}

// NewHTTPServer builds the server and its router.
func NewHTTPServer(addr string, sessions Sessions, directory DirectoryLister, opts Options, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	perMinute, burst := opts.SubmitPerMinute, opts.SubmitBurst
	if perMinute <= 0 {
		perMinute = 6
	}
	if burst <= 0 {
		burst = 3
	}
	s := &HTTPServer{
		sessions:  sessions,
		directory: directory,
		limiter:   newIPLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:    logger,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/specialties", s.handleSpecialties)
		r.Get("/doctors", s.handleDoctors)

		r.Post("/wizard", s.handleCreateSession)
		r.Route("/wizard/{id}", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Post("/specialty", s.handleSelectSpecialty)
			r.Post("/doctor", s.handleSelectDoctor)
			r.Post("/slot", s.handleSelectSlot)
			r.Post("/contact", s.handleContact)
			r.Post("/method", s.handleMethod)
			r.Post("/next", s.handleNext)
			r.Post("/previous", s.handlePrevious)
			r.Post("/availability/retry", s.handleRetry)
			r.With(s.rateLimit).Post("/submit", s.handleSubmit)
			r.Post("/reset", s.handleReset)
		})
	})
	return r
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
