package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Catalog   CatalogConfig
	Profile   ProfileConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs outside production
func (c ServerConfig) IsDevelopment() bool {
	return c.Env != "production"
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	Schema          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type RateLimitConfig struct {
	Backend             string // redis or memory
	AdjustStockRequests int
	AdjustStockWindow   time.Duration
	WriteRequests       int
	WriteWindow         time.Duration
}

type CatalogConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

type ProfileConfig struct {
	DefaultCountryCode string
}

// Load reads .env (when present) and the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("JWT_REFRESH_EXPIRY", 7)
	v.SetDefault("RATE_LIMIT_BACKEND", "redis")
	v.SetDefault("RATE_LIMIT_ADJUST_STOCK_REQUESTS", 60)
	v.SetDefault("RATE_LIMIT_ADJUST_STOCK_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_WRITE_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WRITE_WINDOW", "1m")
	v.SetDefault("CATALOG_DEFAULT_PAGE_SIZE", 10)
	v.SetDefault("CATALOG_MAX_PAGE_SIZE", 100)
	v.SetDefault("PROFILE_DEFAULT_COUNTRY_CODE", "256")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_DATABASE"),
			Schema:          v.GetString("DB_SCHEMA"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  v.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: v.GetInt("JWT_REFRESH_EXPIRY"),
		},
		RateLimit: RateLimitConfig{
			Backend:             strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
			AdjustStockRequests: v.GetInt("RATE_LIMIT_ADJUST_STOCK_REQUESTS"),
			AdjustStockWindow:   v.GetDuration("RATE_LIMIT_ADJUST_STOCK_WINDOW"),
			WriteRequests:       v.GetInt("RATE_LIMIT_WRITE_REQUESTS"),
			WriteWindow:         v.GetDuration("RATE_LIMIT_WRITE_WINDOW"),
		},
		Catalog: CatalogConfig{
			DefaultPageSize: v.GetInt("CATALOG_DEFAULT_PAGE_SIZE"),
			MaxPageSize:     v.GetInt("CATALOG_MAX_PAGE_SIZE"),
		},
		Profile: ProfileConfig{
			DefaultCountryCode: v.GetString("PROFILE_DEFAULT_COUNTRY_CODE"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
