package dependency

import (
	"time"

	"loadhub-core-svc/src/clients"
	"loadhub-core-svc/src/internal/assignment"
	"loadhub-core-svc/src/internal/cache"
	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/fleet"
	"loadhub-core-svc/src/internal/load"
	"loadhub-core-svc/src/internal/metrics"
	"loadhub-core-svc/src/internal/middleware"
	"loadhub-core-svc/src/internal/ratelimit"
	"loadhub-core-svc/src/internal/scoring"
	"loadhub-core-svc/src/internal/session"
	"loadhub-core-svc/src/internal/sweeper"
	"loadhub-core-svc/src/internal/token"
	"loadhub-core-svc/src/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const EngineMemory = "memory"

type Manager struct {
	Router         *gin.Engine
	Config         *config.Configuration
	Mongodb        *clients.MongoDB
	Redis          *clients.RedisClient
	RabbitMQ       *clients.RabbitMQ
	Registry       *prometheus.Registry
	Metrics        metrics.Recorder
	Publisher      events.Publisher
	TokenService   token.Service
	AuthMiddleware *middleware.AuthMiddleware
	LoadService    load.Service
	LoadHandler    load.Handler
	Coordinator    assignment.Coordinator
	FleetService   fleet.Service
	FleetHandler   fleet.Handler
	UserService    user.Service
	UserHandler    user.Handler
	CacheService   cache.Service
	Limiters       *ratelimit.Set
	Sweeper        *sweeper.Sweeper
}

type stores struct {
	loads    load.Store
	sessions session.Store
	users    user.Repository
	fleet    fleet.Store
}

// NewDependencyManager wires every service. A nil mongodb selects the in-memory
// stores, a nil redisClient keeps rate limiting in process and disables the
// stats cache, and a nil rabbitMQ drops notifications.
func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) (*Manager, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var publisher events.Publisher = events.Nop()
	if rabbitMQ != nil {
		publisher = clients.NewEventPublisher(&cfg.Queue.RabbitMQ, rabbitMQ.Channel)
	}

	var rdb *redis.Client
	if redisClient != nil {
		rdb = redisClient.Client
	}

	st := newStores(mongodb, cfg)

	tokenService, err := token.NewTokenService(st.sessions, &cfg.Security,
		token.WithPublisher(publisher),
		token.WithMetrics(collector))
	if err != nil {
		return nil, err
	}

	loadService := load.NewLoadService(st.loads, cfg,
		load.WithPublisher(publisher),
		load.WithMetrics(collector))
	fleetService := fleet.NewFleetService(st.fleet)
	coordinator := assignment.NewCoordinator(loadService, st.fleet, newScorer(cfg))
	cacheService := cache.NewCacheService(rdb, cfg)
	userService := user.NewUserService(st.users, fleetService, tokenService, cfg, user.WithPublisher(publisher))

	interval := time.Duration(cfg.Lifecycle.SweepIntervalMinutes) * time.Minute

	return &Manager{
		Router:         router,
		Config:         cfg,
		Mongodb:        mongodb,
		Redis:          redisClient,
		RabbitMQ:       rabbitMQ,
		Registry:       registry,
		Metrics:        collector,
		Publisher:      publisher,
		TokenService:   tokenService,
		AuthMiddleware: middleware.NewAuthMiddleware(tokenService),
		LoadService:    loadService,
		LoadHandler:    load.NewHandler(cfg, loadService, coordinator, cacheService),
		Coordinator:    coordinator,
		FleetService:   fleetService,
		FleetHandler:   fleet.NewHandler(cfg, fleetService),
		UserService:    userService,
		UserHandler:    user.NewHandler(cfg, userService),
		CacheService:   cacheService,
		Limiters:       ratelimit.NewSet(&cfg.RateLimit, rdb),
		Sweeper:        sweeper.New(loadService, interval, collector),
	}, nil
}

func newStores(mongodb *clients.MongoDB, cfg *config.Configuration) *stores {
	if mongodb == nil {
		logrus.Warn("Using in-memory stores, data will not survive a restart")
		return &stores{
			loads:    load.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			users:    user.NewMemoryStore(),
			fleet:    fleet.NewMemoryStore(),
		}
	}

	collections := cfg.Database.Collections
	return &stores{
		loads:    load.NewLoadRepository(mongodb, collections.Loads),
		sessions: session.NewSessionRepository(mongodb, collections.Sessions),
		users:    user.NewUserRepository(mongodb, collections.Users),
		fleet:    fleet.NewFleetRepository(mongodb, collections.OwnerProfiles, collections.DriverProfiles, collections.Vehicles),
	}
}

func newScorer(cfg *config.Configuration) scoring.Scorer {
	if cfg.Scoring.Enabled && cfg.Scoring.Url != "" {
		return clients.NewScoringClient(&cfg.Scoring)
	}
	logrus.Info("Remote scoring disabled, using local rules")
	return scoring.Rules()
}
