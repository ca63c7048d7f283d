package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"promoreg/internal/config"
	handlerErrors "promoreg/internal/http-server/handlers/errors"
	"promoreg/internal/http-server/handlers/promotion"
	"promoreg/internal/http-server/middleware/authenticate"
	"promoreg/internal/http-server/middleware/logging"
	"promoreg/internal/http-server/middleware/timeout"
	"promoreg/lib/api/response"
	"promoreg/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	promotion.Commands
	promotion.Queries
}

// New builds the router; gatherer may be nil when metrics are disabled.
func New(conf *config.Config, log *slog.Logger, handler Handler, gatherer prometheus.Gatherer) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5 * time.Second))
	router.Use(middleware.RequestID)
	router.Use(logging.New(log))
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(handlerErrors.NotFound(log))
	router.MethodNotAllowed(handlerErrors.NotAllowed(log))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(map[string]string{"status": "ok"}))
	})
	if gatherer != nil && conf.Metrics.Enabled {
		router.Handle(conf.Metrics.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Get("/owner", promotion.Owner(log, handler))

		rootApi.Route("/promotions", func(pr chi.Router) {
			pr.Get("/", promotion.List(log, handler))
			pr.Get("/{name}", promotion.ByName(log, handler))
			pr.Get("/{name}/exists", promotion.Exists(log, handler))
			pr.With(authenticate.New(log, handler)).Post("/", promotion.Create(log, handler))
		})

		rootApi.Route("/slots/{slot}", func(sr chi.Router) {
			sr.Get("/", promotion.BySlot(log, handler))
			sr.Get("/participants", promotion.Participants(log, handler))
			sr.Get("/active", promotion.Active(log, handler))
			sr.Get("/usage/{customer}", promotion.Usage(log, handler))
			sr.Get("/events", promotion.Events(log, handler))

			sr.Group(func(owner chi.Router) {
				owner.Use(authenticate.New(log, handler))
				owner.Post("/apply", promotion.Apply(log, handler))
				owner.Post("/remove", promotion.Remove(log, handler))
				owner.Delete("/", promotion.Delete(log, handler))
			})
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIp, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
