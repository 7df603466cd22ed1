package config

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const defaultConfigPath = "src/internal/config/cfg.yml"

type Configuration struct {
	Logs      LogsSettings      `mapstructure:"logs"`
	App       Application       `mapstructure:"app"`
	Database  Database          `mapstructure:"database"`
	Queue     QueueConfig       `mapstructure:"queue"`
	Redis     Redis             `mapstructure:"redis"`
	Security  SecuritySettings  `mapstructure:"security"`
	Server    ServerSettings    `mapstructure:"server"`
	Search    SearchConfig      `mapstructure:"search"`
	Cache     CacheConfig       `mapstructure:"cache"`
	Lifecycle LifecycleSettings `mapstructure:"lifecycle"`
	RateLimit RateLimitConfig   `mapstructure:"rate-limit"`
	Scoring   ScoringConfig     `mapstructure:"scoring"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name     string `mapstructure:"name"`
	Timeout  int    `mapstructure:"timeout"`
	Version  string `mapstructure:"version"`
	HostLink string `mapstructure:"host-link"`
}

type Database struct {
	Engine      string      `mapstructure:"engine"`
	Url         string      `mapstructure:"url"`
	DbName      string      `mapstructure:"dbname"`
	Timeout     int         `mapstructure:"timeout"`
	Collections Collections `mapstructure:"collections"`
}

type Collections struct {
	Loads          string `mapstructure:"loads"`
	Users          string `mapstructure:"users"`
	Sessions       string `mapstructure:"sessions"`
	OwnerProfiles  string `mapstructure:"owner-profiles"`
	DriverProfiles string `mapstructure:"driver-profiles"`
	Vehicles       string `mapstructure:"vehicles"`
}

type SearchConfig struct {
	MinQueryLimit int `mapstructure:"min-query-limit"`
	MaxQueryLimit int `mapstructure:"max-query-limit"`
}

type QueueConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Url            string `mapstructure:"url"`
	Exchange       string `mapstructure:"exchange"`
	ExchangeType   string `mapstructure:"exchange-type"`
	LoadRoutingKey string `mapstructure:"load-routing-key"`
	AuthRoutingKey string `mapstructure:"auth-routing-key"`
	Durable        bool   `mapstructure:"durable"`
	AutoDelete     bool   `mapstructure:"auto-delete"`
	Internal       bool   `mapstructure:"internal"`
	NoWait         bool   `mapstructure:"no-wait"`
}

type Redis struct {
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type SecuritySettings struct {
	AccessSecret      string `mapstructure:"access-secret"`
	RefreshSecret     string `mapstructure:"refresh-secret"`
	Issuer            string `mapstructure:"issuer"`
	AccessTTLMinutes  int    `mapstructure:"access-ttl-minutes"`
	RefreshTTLHours   int    `mapstructure:"refresh-ttl-hours"`
	ResetTTLMinutes   int    `mapstructure:"reset-ttl-minutes"`
	BcryptCost        int    `mapstructure:"bcrypt-cost"`
	MinPasswordLength int    `mapstructure:"min-password-length"`
}

type ServerSettings struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read-timeout"`
	WriteTimeout int    `mapstructure:"write-timeout"`
	IdleTimeout  int    `mapstructure:"idle-timeout"`

	// TrustedProxies lists the proxy addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted-proxies"`
}

type CacheConfig struct {
	Enabled                    bool   `mapstructure:"enabled"`
	LoadStatsKey               string `mapstructure:"load-stats-key"`
	LoadStatsExpirationMinutes int    `mapstructure:"load-stats-expiration-minutes"`
}

// LifecycleSettings controls reclamation of loads stuck in ACCEPTED_BY_OWNER.
type LifecycleSettings struct {
	AcceptanceTimeoutMinutes int  `mapstructure:"acceptance-timeout-minutes"`
	SweepIntervalMinutes     int  `mapstructure:"sweep-interval-minutes"`
	SweeperEnabled           bool `mapstructure:"sweeper-enabled"`
}

type RateLimitConfig struct {
	Backend              string     `mapstructure:"backend"`
	KeyPrefix            string     `mapstructure:"key-prefix"`
	SweepIntervalSeconds int        `mapstructure:"sweep-interval-seconds"`
	Auth                 WindowRule `mapstructure:"auth"`
	LoadAccept           WindowRule `mapstructure:"load-accept"`
	DriverStatus         WindowRule `mapstructure:"driver-status"`
}

type WindowRule struct {
	WindowSeconds int    `mapstructure:"window-seconds"`
	Max           int    `mapstructure:"max"`
	Message       string `mapstructure:"message"`
}

type ScoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Url     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout-ms"`
}

func Load() *Configuration {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg := read(path)
	logrus.Info("Configuration loaded")

	// Override with environment variables
	mongoUri := os.Getenv("MONGODB_URL")
	if mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	dbName := os.Getenv("DB_NAME")
	if dbName != "" {
		cfg.Database.DbName = dbName
	}

	dbEngine := os.Getenv("DB_ENGINE")
	if dbEngine != "" {
		cfg.Database.Engine = dbEngine
	}

	redisUrl := os.Getenv("REDIS_URL")
	if redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	rabbitmqUrl := os.Getenv("RABBITMQ_URL")
	if rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}

	accessSecret := os.Getenv("JWT_ACCESS_SECRET")
	if accessSecret != "" {
		cfg.Security.AccessSecret = accessSecret
	}

	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret != "" {
		cfg.Security.RefreshSecret = refreshSecret
	}

	scoringUrl := os.Getenv("SCORING_URL")
	if scoringUrl != "" {
		cfg.Scoring.Url = scoringUrl
	}

	port := os.Getenv("SERVER_PORT")
	if port != "" {
		cfg.Server.Port = port
	}

	return cfg
}

func read(path string) *Configuration {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	v.AutomaticEnv()
	setDefaults(v)

	var config Configuration

	err := v.ReadInConfig()
	if err != nil {
		logrus.Panicf("Error reading config file, %s", err)
	}

	err = v.Unmarshal(&config)
	if err != nil {
		logrus.Panicf("Error unmarshalling config file, %s", err)
	}

	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.timeout", 10)
	v.SetDefault("database.engine", "mongo")
	v.SetDefault("database.timeout", 10)
	v.SetDefault("database.collections.loads", "loads")
	v.SetDefault("database.collections.users", "users")
	v.SetDefault("database.collections.sessions", "sessions")
	v.SetDefault("database.collections.owner-profiles", "owner_profiles")
	v.SetDefault("database.collections.driver-profiles", "driver_profiles")
	v.SetDefault("database.collections.vehicles", "vehicles")
	v.SetDefault("search.min-query-limit", 20)
	v.SetDefault("search.max-query-limit", 100)
	v.SetDefault("security.access-ttl-minutes", 15)
	v.SetDefault("security.refresh-ttl-hours", 168)
	v.SetDefault("security.reset-ttl-minutes", 60)
	v.SetDefault("security.bcrypt-cost", 10)
	v.SetDefault("security.min-password-length", 6)
	v.SetDefault("lifecycle.acceptance-timeout-minutes", 30)
	v.SetDefault("lifecycle.sweep-interval-minutes", 15)
	v.SetDefault("lifecycle.sweeper-enabled", true)
	v.SetDefault("rate-limit.backend", "memory")
	v.SetDefault("rate-limit.key-prefix", "ratelimit")
	v.SetDefault("rate-limit.sweep-interval-seconds", 60)
	v.SetDefault("rate-limit.auth.window-seconds", 60)
	v.SetDefault("rate-limit.auth.max", 10)
	v.SetDefault("rate-limit.load-accept.window-seconds", 60)
	v.SetDefault("rate-limit.load-accept.max", 5)
	v.SetDefault("rate-limit.driver-status.window-seconds", 60)
	v.SetDefault("rate-limit.driver-status.max", 10)
	v.SetDefault("scoring.timeout-ms", 800)
	v.SetDefault("cache.load-stats-key", "loads:stats")
	v.SetDefault("cache.load-stats-expiration-minutes", 5)
}
