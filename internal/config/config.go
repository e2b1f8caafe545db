package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Discord   DiscordConfig
	Store     StoreConfig
	Redis     RedisConfig
	Browse    BrowseConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
	Workers   WorkersConfig
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"cardmarket"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// DiscordConfig holds chat connection settings. Without a token the bot
// runs against the console gateway.
type DiscordConfig struct {
	Token         string   `envconfig:"DISCORD_TOKEN" default:""`
	GuildID       string   `envconfig:"DISCORD_GUILD_ID" default:""`
	AdminIDs      []string `envconfig:"DISCORD_ADMIN_IDS" default:""`
	CommandPrefix string   `envconfig:"DISCORD_COMMAND_PREFIX" default:"!"`
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Type       string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, mysql, postgres or memory
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"./data/market.db"`

	MySQLHost     string `envconfig:"STORE_MYSQL_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"STORE_MYSQL_PORT" default:"3306"`
	MySQLName     string `envconfig:"STORE_MYSQL_NAME" default:"cardmarket"`
	MySQLUser     string `envconfig:"STORE_MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"STORE_MYSQL_PASS" default:""`

	PostgresHost     string `envconfig:"STORE_POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"STORE_POSTGRES_PORT" default:"5432"`
	PostgresName     string `envconfig:"STORE_POSTGRES_NAME" default:"cardmarket"`
	PostgresUser     string `envconfig:"STORE_POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"STORE_POSTGRES_PASS" default:""`
	PostgresSSLMode  string `envconfig:"STORE_POSTGRES_SSLMODE" default:"disable"`
}

// RedisConfig locates the change-notification broker. Empty host disables it.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:""`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Channel  string `envconfig:"REDIS_CHANNEL" default:"cardmarket:data_update"`
}

// BrowseConfig holds private browse settings.
type BrowseConfig struct {
	PageSize        int           `envconfig:"BROWSE_PAGE_SIZE" default:"9"`
	CompactPageSize int           `envconfig:"BROWSE_COMPACT_PAGE_SIZE" default:"4"`
	SessionIdle     time.Duration `envconfig:"BROWSE_SESSION_IDLE" default:"15m"`
	JanitorInterval time.Duration `envconfig:"BROWSE_JANITOR_INTERVAL" default:"1m"`
}

// AdminConfig holds the admin HTTP API allow-list.
type AdminConfig struct {
	APIKeys []string `envconfig:"ADMIN_API_KEYS" default:""`
}

// RateLimitConfig throttles chat actors and admin API clients.
type RateLimitConfig struct {
	PerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	Burst     int `envconfig:"RATE_LIMIT_BURST" default:"5"`
}

// WorkersConfig sizes the inbound event scheduler.
type WorkersConfig struct {
	Count       int           `envconfig:"WORKERS_COUNT" default:"8"`
	QueueSize   int           `envconfig:"WORKERS_QUEUE_SIZE" default:"256"`
	TaskTimeout time.Duration `envconfig:"WORKERS_TASK_TIMEOUT" default:"30s"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Enabled reports whether a chat connection is configured.
func (d *DiscordConfig) Enabled() bool {
	return d.Token != ""
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	c := mysql.NewConfig()
	c.User = s.MySQLUser
	c.Passwd = s.MySQLPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(s.MySQLHost, strconv.Itoa(s.MySQLPort))
	c.DBName = s.MySQLName
	c.ParseTime = true
	return c.FormatDSN()
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		s.PostgresUser, s.PostgresPassword,
		net.JoinHostPort(s.PostgresHost, strconv.Itoa(s.PostgresPort)),
		s.PostgresName, s.PostgresSSLMode)
}

// Enabled reports whether change notifications go to Redis.
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Discord.AdminIDs = compact(cfg.Discord.AdminIDs)
	cfg.Admin.APIKeys = compact(cfg.Admin.APIKeys)

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Store.Type {
	case "sqlite", "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("STORE_TYPE %q is not one of sqlite, mysql, postgres, memory", c.Store.Type)
	}
	if c.Browse.PageSize <= 0 || c.Browse.CompactPageSize <= 0 {
		return fmt.Errorf("browse page sizes must be positive")
	}
	if c.Workers.Count <= 0 || c.Workers.QueueSize <= 0 {
		return fmt.Errorf("worker count and queue size must be positive")
	}
	return nil
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
