package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/metrics"
	red "telegram-miniapp/internal/infra/redis"
	"telegram-miniapp/internal/usecase"
)

type Options struct {
	APIKey          string
	RateLimit       int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
	// InitDataToken is the bot token used to verify Mini App initData on /api/service.
	// Empty disables the check.
	InitDataToken  string
	InitDataMaxAge time.Duration
}

// Server exposes the Mini App endpoint and the admin API.
type Server struct {
	notifier  usecase.NotificationUseCase
	services  usecase.ServiceUseCase
	broadcast usecase.BroadcastUseCase
	directory repository.AddressDirectory
	auth      *AuthManager
	limiter   *red.RateLimiter
	validate  *validator.Validate
	opts      Options
	log       *zerolog.Logger
}

// NewServer wires the handlers. limiter may be nil to disable rate limiting.
func NewServer(
	notifier usecase.NotificationUseCase,
	services usecase.ServiceUseCase,
	broadcast usecase.BroadcastUseCase,
	directory repository.AddressDirectory,
	auth *AuthManager,
	limiter *red.RateLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &Server{
		notifier:  notifier,
		services:  services,
		broadcast: broadcast,
		directory: directory,
		auth:      auth,
		limiter:   limiter,
		validate:  validator.New(),
		opts:      opts,
		log:       logging.Component(logger, "http"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(s.opts.RequestTimeout), MaxBody(1<<20))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/api/service", s.handleService)

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/logout", s.handleLogout)
			r.Post("/notify", s.handleNotify)
			r.Post("/broadcast", s.handleBroadcast)
			r.Get("/addresses/{userID}", s.handleLookupAddress)
			r.Delete("/addresses/{userID}", s.handleEvictAddress)
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
