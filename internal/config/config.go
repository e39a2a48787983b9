package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongodb"
	DriverMemory   = "memory"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MongoConfig holds MongoDB connection settings. Toggles need a replica
// set for session transactions.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Environment        string   `mapstructure:"environment"`
	LogLevel           string   `mapstructure:"log_level"`
	LogFormat          string   `mapstructure:"log_format"`
	RateLimitEnabled   bool     `mapstructure:"rate_limit_enabled"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
	EnableMetrics      bool     `mapstructure:"enable_metrics"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string][]string{
	"server.port":             {"SERVER_PORT"},
	"server.read_timeout":     {"SERVER_READ_TIMEOUT"},
	"server.write_timeout":    {"SERVER_WRITE_TIMEOUT"},
	"server.idle_timeout":     {"SERVER_IDLE_TIMEOUT"},
	"server.shutdown_timeout": {"SERVER_SHUTDOWN_TIMEOUT"},

	"store.driver": {"STORE_DRIVER"},

	"database.host":              {"DB_HOST"},
	"database.port":              {"DB_PORT"},
	"database.user":              {"DB_USER"},
	"database.password":          {"DB_PASSWORD"},
	"database.dbname":            {"DB_NAME"},
	"database.sslmode":           {"DB_SSLMODE"},
	"database.max_open_conns":    {"DB_MAX_OPEN_CONNS"},
	"database.max_idle_conns":    {"DB_MAX_IDLE_CONNS"},
	"database.conn_max_lifetime": {"DB_CONN_MAX_LIFETIME"},

	"mongo.uri":             {"MONGO_URI"},
	"mongo.database":        {"MONGO_DATABASE"},
	"mongo.connect_timeout": {"MONGO_CONNECT_TIMEOUT"},

	"redis.enabled":   {"REDIS_ENABLED"},
	"redis.host":      {"REDIS_HOST"},
	"redis.port":      {"REDIS_PORT"},
	"redis.password":  {"REDIS_PASSWORD"},
	"redis.db":        {"REDIS_DB"},
	"redis.cache_ttl": {"CACHE_TTL", "REDIS_CACHE_TTL"},

	"auth.jwt_secret": {"JWT_SECRET"},
	"auth.issuer":     {"JWT_ISSUER"},

	"app.environment":           {"APP_ENV"},
	"app.log_level":             {"LOG_LEVEL"},
	"app.log_format":            {"LOG_FORMAT"},
	"app.rate_limit_enabled":    {"RATE_LIMIT_ENABLED"},
	"app.rate_limit_per_minute": {"RATE_LIMIT_REQUESTS_PER_MINUTE"},
	"app.enable_metrics":        {"ENABLE_METRICS"},
	"app.cors_allowed_origins":  {"CORS_ALLOWED_ORIGINS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("store.driver", DriverPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "vidshare")
	v.SetDefault("database.password", "dev_password_123")
	v.SetDefault("database.dbname", "vidshare")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "vidshare")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "5m")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("app.rate_limit_enabled", true)
	v.SetDefault("app.rate_limit_per_minute", 100)
	v.SetDefault("app.enable_metrics", true)
	v.SetDefault("app.cors_allowed_origins", []string{"*"})
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, and the environment, in increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q (want %s, %s or %s)", c.Store.Driver, DriverPostgres, DriverMongo, DriverMemory)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if !c.IsDevelopment() && c.Auth.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed outside development")
	}
	if c.App.RateLimitEnabled && c.App.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive")
	}
	if c.Store.Driver == DriverMongo {
		if _, err := url.Parse(c.Mongo.URI); err != nil || !strings.HasPrefix(c.Mongo.URI, "mongodb") {
			return fmt.Errorf("invalid MONGO_URI %q", c.Mongo.URI)
		}
	}
	return nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrationURL returns the postgres:// URL golang-migrate expects.
func (c *DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// RedisAddr returns the Redis address in host:port format
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
