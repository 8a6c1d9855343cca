package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/micheleDibi/StyleForge-sub000/internal/view"
	"github.com/micheleDibi/StyleForge-sub000/pkg/log"
	"github.com/micheleDibi/StyleForge-sub000/pkg/metrics"
	"github.com/micheleDibi/StyleForge-sub000/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	serverName              = "status_server"
)

// SnapshotSource is what the status endpoint reports.
type SnapshotSource interface {
	Snapshot() view.Snapshot
}

// StatusServer exposes the snapshot of a running watch as JSON on /status
// and the process metrics on /metrics.
type StatusServer struct {
	listener   net.Listener
	httpServer *http.Server
}

func NewStatusServer(listener net.Listener, source SnapshotSource) *StatusServer {
	return &StatusServer{
		listener: listener,
		httpServer: &http.Server{
			Handler:           NewStatusRouter(source),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewStatusRouter builds the routes of the status server. The request
// metrics live in their own registry so that several routers can coexist.
func NewStatusRouter(source SnapshotSource) http.Handler {
	registry := prometheus.NewRegistry()
	metricMiddleware := metrics.NewMiddleware(serverName)
	if err := metricMiddleware.Register(registry); err != nil {
		zap.S().Named(serverName).Warnw("failed to register request metrics", "error", err)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		log.Logger(zap.L(), serverName),
		metricMiddleware.Handler,
		chiMiddleware.Recoverer,
	)

	router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, source.Snapshot())
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, registry},
		promhttp.HandlerOpts{},
	))

	return router
}

func (s *StatusServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Run serves until ctx is cancelled.
func (s *StatusServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.httpServer.SetKeepAlivesEnabled(false)
		_ = s.httpServer.Shutdown(ctxTimeout)
		zap.S().Named(serverName).Debug("status server terminated")
	}()

	zap.S().Named(serverName).Infof("serving status: http://%s/status", s.listener.Addr())
	if err := s.httpServer.Serve(s.listener); err != nil &&
		!errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
