package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Warehouse persistence modes.
const (
	WarehouseModeLocal    = "local"
	WarehouseModePostgres = "postgres"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Identity  IdentityConfig
	Warehouse WarehouseConfig
	Lock      LockConfig
	Events    EventsConfig
	CORS      CORSConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig controls how grid sessions are tracked and addressed.
type SessionConfig struct {
	Store       string
	TTL         time.Duration
	TokenSecret string
	KeyPrefix   string
}

// IdentityConfig maps platform role ids onto application roles.
type IdentityConfig struct {
	RolesHeader string
	EmailHeader string
	RoleIDs     map[string]string
}

// WarehouseConfig points at the evaluation tables and selects the write mode.
type WarehouseConfig struct {
	Mode          string
	SourceTable   string
	FilterTable   string
	EventsTable   string
	LocalDir      string
	LocalFile     string
	ConflictCheck bool
}

// LockConfig tunes the lock workflow.
type LockConfig struct {
	GracePeriod time.Duration
}

// EventsConfig sizes the activity event dispatcher.
type EventsConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		Store:       strings.ToLower(v.GetString("SESSION_STORE")),
		TTL:         parseDuration(v.GetString("SESSION_TTL"), 8*time.Hour),
		TokenSecret: v.GetString("SESSION_TOKEN_SECRET"),
		KeyPrefix:   v.GetString("SESSION_KEY_PREFIX"),
	}

	cfg.Identity = IdentityConfig{
		RolesHeader: v.GetString("IDENTITY_ROLES_HEADER"),
		EmailHeader: v.GetString("IDENTITY_EMAIL_HEADER"),
		RoleIDs: roleMapping(map[string]string{
			"BP":   v.GetString("ROLE_BP_ID"),
			"LC":   v.GetString("ROLE_LC_ID"),
			"MA":   v.GetString("ROLE_MA_ID"),
			"DEV":  v.GetString("ROLE_DEV_ID"),
			"TEST": v.GetString("ROLE_TEST_ID"),
		}),
	}

	cfg.Warehouse = WarehouseConfig{
		Mode:          strings.ToLower(v.GetString("WAREHOUSE_MODE")),
		SourceTable:   v.GetString("WAREHOUSE_SOURCE_TABLE"),
		FilterTable:   v.GetString("WAREHOUSE_FILTER_TABLE"),
		EventsTable:   v.GetString("WAREHOUSE_EVENTS_TABLE"),
		LocalDir:      v.GetString("WAREHOUSE_LOCAL_DIR"),
		LocalFile:     v.GetString("WAREHOUSE_LOCAL_FILE"),
		ConflictCheck: v.GetBool("RECONCILE_CONFLICT_CHECK"),
	}

	cfg.Lock = LockConfig{
		GracePeriod: time.Duration(v.GetInt("LOCK_GRACE_DAYS")) * 24 * time.Hour,
	}

	cfg.Events = EventsConfig{
		Enabled:    v.GetBool("ENABLE_EVENTS"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("EVENTS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

// IsProduction reports whether the service runs against the production warehouse.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == EnvProduction
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "kulate_stoly")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "8h")
	v.SetDefault("SESSION_TOKEN_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_KEY_PREFIX", "kulate_stoly:session:")

	v.SetDefault("IDENTITY_ROLES_HEADER", "X-Kbc-User-Roles")
	v.SetDefault("IDENTITY_EMAIL_HEADER", "X-Kbc-User-Email")
	v.SetDefault("ROLE_BP_ID", "")
	v.SetDefault("ROLE_LC_ID", "")
	v.SetDefault("ROLE_MA_ID", "")
	v.SetDefault("ROLE_DEV_ID", "")
	v.SetDefault("ROLE_TEST_ID", "")

	v.SetDefault("WAREHOUSE_MODE", WarehouseModeLocal)
	v.SetDefault("WAREHOUSE_SOURCE_TABLE", "kulate_stoly_evaluations")
	v.SetDefault("WAREHOUSE_FILTER_TABLE", "kulate_stoly_filters")
	v.SetDefault("WAREHOUSE_EVENTS_TABLE", "kulate_stoly_events")
	v.SetDefault("WAREHOUSE_LOCAL_DIR", "./data")
	v.SetDefault("WAREHOUSE_LOCAL_FILE", "evaluations.csv")
	v.SetDefault("RECONCILE_CONFLICT_CHECK", false)

	v.SetDefault("LOCK_GRACE_DAYS", 30)

	v.SetDefault("ENABLE_EVENTS", true)
	v.SetDefault("EVENTS_WORKERS", 1)
	v.SetDefault("EVENTS_BUFFER_SIZE", 64)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "2s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

// roleMapping inverts role -> id into id -> role, skipping unset ids.
func roleMapping(byRole map[string]string) map[string]string {
	result := make(map[string]string, len(byRole))
	for role, raw := range byRole {
		for _, id := range splitAndTrim(raw) {
			result[id] = role
		}
	}
	return result
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
