package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ServerPort      string         `mapstructure:"SERVER_PORT"`
	GinMode         string         `mapstructure:"GIN_MODE"`
	DatabaseURL     string         `mapstructure:"DATABASE_URL"`
	Store           StoreConfig    `mapstructure:"STORE"`
	Mongo           MongoConfig    `mapstructure:"MONGO"`
	SQLite          SQLiteConfig   `mapstructure:"SQLITE"`
	Redis           RedisConfig    `mapstructure:"REDIS"`
	CacheTTL        time.Duration  `mapstructure:"CACHE_TTL"`
	RabbitMQ        RabbitMQConfig `mapstructure:"RABBITMQ"`
	Auth            AuthConfig     `mapstructure:"AUTH"`
	CORS            CORSConfig     `mapstructure:"CORS"`
	Import          ImportConfig   `mapstructure:"IMPORT"`
	ImportInterval  time.Duration  `mapstructure:"IMPORT_INTERVAL"`
	ShutdownTimeout time.Duration  `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects the paper store backend
type StoreConfig struct {
	Driver string `mapstructure:"DRIVER"` // memory, mongo, postgres or sqlite
}

type MongoConfig struct {
	URI      string `mapstructure:"URI"`
	Database string `mapstructure:"DATABASE"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"PATH"`
}

// RedisConfig enables the list cache when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// RabbitMQConfig enables domain events when URI is set
type RabbitMQConfig struct {
	URI      string `mapstructure:"URI"`
	Exchange string `mapstructure:"EXCHANGE"`
}

// AuthConfig holds the settings used to verify authoring tokens
type AuthConfig struct {
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	Issuer        string `mapstructure:"ISSUER"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`
}

// ImportConfig points at a directory of YAML paper files. Empty disables it.
type ImportConfig struct {
	Dir string `mapstructure:"DIR"`
}

// Store drivers
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LoadConfig loads configuration from .env, environment variables and config.yaml
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, relying on the process environment")
	}

	v := viper.New()
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("config.yaml not found, using environment variables and defaults")
		} else {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	// PYQ_SERVER_PORT, PYQ_STORE_DRIVER, PYQ_MONGO_URI etc.
	v.SetEnvPrefix("PYQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.CORS.AllowedOrigins = splitOrigins(cfg.CORS.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("GIN_MODE", "debug") // gin.DebugMode, gin.ReleaseMode, gin.TestMode
	v.SetDefault("STORE.DRIVER", DriverMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO.URI", "")
	v.SetDefault("MONGO.DATABASE", "pyq")
	v.SetDefault("SQLITE.PATH", "pyq.db")
	v.SetDefault("REDIS.ADDR", "")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("CACHE_TTL", "2m")
	v.SetDefault("RABBITMQ.URI", "")
	v.SetDefault("RABBITMQ.EXCHANGE", "pyq.events")
	v.SetDefault("AUTH.JWT_SIGNING_KEY", "change-me-pyq-signing-key") // IMPORTANT: Change this in production
	v.SetDefault("AUTH.ISSUER", "")
	v.SetDefault("CORS.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("IMPORT.DIR", "")
	v.SetDefault("IMPORT_INTERVAL", "10m")
	v.SetDefault("SHUTDOWN_TIMEOUT", "5s")
}

// Validate rejects unknown store drivers and a missing DSN for the chosen one.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.Store.Driver)
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("MONGO.URI and MONGO.DATABASE are required for store driver %q", c.Store.Driver)
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLITE.PATH is required for store driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("AUTH.JWT_SIGNING_KEY must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// splitOrigins accepts both a YAML list and a comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, o := range in {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
