package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"loadhub-core-svc/src/clients"
	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/dependency"
	"loadhub-core-svc/src/internal/fleet"
	"loadhub-core-svc/src/internal/load"
	"loadhub-core-svc/src/internal/middleware"
	"loadhub-core-svc/src/internal/session"
	"loadhub-core-svc/src/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

const shutdownTimeout = 30 * time.Second

type Server struct {
	cfg *config.Configuration
}

func New(cfg *config.Configuration) *Server {
	return &Server{cfg: cfg}
}

// newRouter builds the engine with recovery and request logging. Forwarding
// headers are honoured only from server.trusted-proxies; with none configured
// ClientIP is the socket address, which is what the rate limiters key on.
func newRouter(cfg *config.Configuration) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery(), middleware.RequestLogger())
	return router, nil
}

// Start connects the backing services, serves HTTP and blocks until SIGINT or
// SIGTERM, then drains in-flight requests and stops the background workers.
func (s *Server) Start() error {
	cfg := s.cfg
	gin.SetMode(cfg.Server.Mode)

	mongodb, err := s.connectMongo()
	if err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	redisClient := s.connectRedis()
	rabbitMQ := s.connectRabbitMQ()
	defer s.closeClients(mongodb, redisClient, rabbitMQ)

	router, err := newRouter(cfg)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	deps, err := dependency.NewDependencyManager(router, mongodb, redisClient, rabbitMQ, cfg)
	if err != nil {
		return fmt.Errorf("dependencies: %w", err)
	}
	SetupRoutes(deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Limiters.StartSweepers(ctx)
	if cfg.Lifecycle.SweeperEnabled {
		go deps.Sweeper.Start(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("HTTP server stopped gracefully")
	return nil
}

func (s *Server) connectMongo() (*clients.MongoDB, error) {
	if s.cfg.Database.Engine == dependency.EngineMemory {
		return nil, nil
	}

	mongodb, err := clients.NewMongoDB(&s.cfg.Database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Database.Timeout)*time.Second)
	defer cancel()

	collections := s.cfg.Database.Collections
	indexErrs := []error{
		load.EnsureIndexes(ctx, mongodb, collections.Loads),
		session.EnsureIndexes(ctx, mongodb, collections.Sessions),
		user.EnsureIndexes(ctx, mongodb, collections.Users),
		fleet.EnsureIndexes(ctx, mongodb, collections.OwnerProfiles, collections.DriverProfiles, collections.Vehicles),
	}
	if err := errors.Join(indexErrs...); err != nil {
		_ = mongodb.Close(context.Background())
		return nil, err
	}
	return mongodb, nil
}

// connectRedis returns nil when redis is unreachable; rate limiting then stays
// in process and the stats cache is skipped.
func (s *Server) connectRedis() *clients.RedisClient {
	if s.cfg.Redis.Url == "" {
		return nil
	}
	redisClient, err := clients.NewRedisClient(&s.cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without it")
		return nil
	}
	return redisClient
}

// connectRabbitMQ returns nil when the broker is disabled or unreachable.
// Notifications are best effort, so the API still serves without it.
func (s *Server) connectRabbitMQ() *clients.RabbitMQ {
	rabbitCfg := &s.cfg.Queue.RabbitMQ
	if !rabbitCfg.Enabled {
		return nil
	}
	rabbitMQ, err := clients.NewRabbitMQ(rabbitCfg)
	if err != nil {
		log.WithError(err).Warn("RabbitMQ unavailable, events will be dropped")
		return nil
	}
	if err := rabbitMQ.SetupExchange(); err != nil {
		log.WithError(err).Warn("Failed to declare exchange, events will be dropped")
		_ = rabbitMQ.Close()
		return nil
	}
	return rabbitMQ
}

func (s *Server) closeClients(mongodb *clients.MongoDB, redisClient *clients.RedisClient, rabbitMQ *clients.RabbitMQ) {
	if rabbitMQ != nil {
		_ = rabbitMQ.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if mongodb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongodb.Close(ctx)
	}
}
