package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.ServerPort != ":8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PYQ_STORE_DRIVER", "sqlite")
	t.Setenv("PYQ_SQLITE_PATH", "/tmp/papers.db")
	t.Setenv("PYQ_CACHE_TTL", "30s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.SQLite.Path != "/tmp/papers.db" {
		t.Errorf("store = %+v sqlite = %+v", cfg.Store, cfg.SQLite)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Store:           StoreConfig{Driver: DriverMemory},
			Auth:            AuthConfig{JWTSigningKey: "k"},
			ShutdownTimeout: time.Second,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory ok", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "cassandra" }, true},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) { c.Store.Driver = DriverPostgres; c.DatabaseURL = "postgres://x" }, false},
		{"mongo without uri", func(c *Config) { c.Store.Driver = DriverMongo; c.Mongo.Database = "pyq" }, true},
		{"empty signing key", func(c *Config) { c.Auth.JWTSigningKey = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
