package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Domenick1991/nikolaus/api"
	"github.com/Domenick1991/nikolaus/config"
	adminapi "github.com/Domenick1991/nikolaus/internal/api/admin_service_api"
	"github.com/Domenick1991/nikolaus/internal/metrics"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Config    *api.ConfigHandler
	TimeSlots *api.TimeSlotHandler
	Bookings  *api.BookingHandler
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
}

// Run starts the admin gRPC server and the public HTTP API and blocks until
// ctx is canceled or one of them fails.
func Run(ctx context.Context, cfg *config.Config, handlers Handlers, admin adminapi.AdminServer, checks map[string]HealthCheck, logger logrus.FieldLogger) error {
	s := newServers(cfg, handlers, admin, checks, logger)

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.WithFields(logrus.Fields{"http": cfg.HTTP.Address, "grpc": cfg.GRPC.Address}).Info("servers started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("servers stopped")
		return nil
	}
}

func newServers(cfg *config.Config, handlers Handlers, admin adminapi.AdminServer, checks map[string]HealthCheck, logger logrus.FieldLogger) *Servers {
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(adminapi.LoggingInterceptor(logger.WithField("component", "admin"))))
	adminapi.Register(grpcSrv, admin)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(adminapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewHTTPHandler(cfg.HTTP.CORSOrigins, NewRouter(handlers, checks, logger)),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: httpSrv,
		health:     healthSrv,
	}
}

// NewRouter mounts the public API under /api next to /healthz and /metrics.
func NewRouter(handlers Handlers, checks map[string]HealthCheck, logger logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), metrics.GinMiddleware())

	router.GET("/healthz", healthz(checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	group := router.Group("/api")
	if handlers.Config != nil {
		handlers.Config.Register(group)
	}
	if handlers.TimeSlots != nil {
		handlers.TimeSlots.Register(group)
	}
	if handlers.Bookings != nil {
		handlers.Bookings.Register(group)
	}
	return router
}

// NewHTTPHandler wraps the router with CORS for the wizard frontend.
func NewHTTPHandler(origins []string, router http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("request failed")
			return
		}
		entry.Debug("request")
	}
}
