package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
		// Store selects the record backend: "postgres" or "memory".
		Store         string        `mapstructure:"store"`
		ProxyUpstream string        `mapstructure:"proxy_upstream"`
		ProxyCacheTTL time.Duration `mapstructure:"proxy_cache_ttl"`
		CatalogFile   string        `mapstructure:"catalog_file"`
		MigrationsDir string        `mapstructure:"migrations_dir"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`

	Redis struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Coordination struct {
		LockTTL     time.Duration `mapstructure:"lock_ttl"`
		PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	} `mapstructure:"coordination"`

	Archive ArchiveConfig `mapstructure:"archive"`

	Client ClientConfig `mapstructure:"client"`
}

// ClientConfig drives the data-entry agent in cmd/client.
type ClientConfig struct {
	RemoteURL         string        `mapstructure:"remote_url"`
	UserName          string        `mapstructure:"user_name"`
	Module            string        `mapstructure:"module"`
	DataDir           string        `mapstructure:"data_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	AutoSaveDelay     time.Duration `mapstructure:"autosave_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	BackupLimit       int           `mapstructure:"backup_limit"`
}

const defaultConfigFile = "configs/config.yaml"

func Load() *Config {
	cfg, err := LoadFile(defaultConfigFile)
	if err != nil {
		log.Fatalf("config unmarshal error: %v", err)
	}
	return cfg
}

// LoadFile reads the given yaml file (optional), applies defaults and
// environment overrides.
func LoadFile(path string) (*Config, error) {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	v.AutomaticEnv()

	// Binary works without config file
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type"})
	v.SetDefault("server.store", "postgres")
	v.SetDefault("server.proxy_cache_ttl", 5*time.Minute)
	v.SetDefault("server.catalog_file", "configs/catalog.yaml")
	v.SetDefault("server.migrations_dir", "migrations")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "recon_db")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("coordination.lock_ttl", 60*time.Second)
	v.SetDefault("coordination.presence_ttl", 60*time.Second)
	v.SetDefault("archive.region", "auto")
	v.SetDefault("archive.bucket", "route-recon-snapshots")
	v.SetDefault("client.remote_url", "http://localhost:8080/api/exec")
	v.SetDefault("client.user_name", "Anonymous")
	v.SetDefault("client.module", "inventory")
	v.SetDefault("client.data_dir", ".recon")
	v.SetDefault("client.heartbeat_interval", 15*time.Second)
	v.SetDefault("client.poll_interval", 5*time.Second)
	v.SetDefault("client.autosave_delay", 30*time.Second)
	v.SetDefault("client.request_timeout", 20*time.Second)
	v.SetDefault("client.backup_limit", 10)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file found at %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if port := envInt("PORT"); port > 0 {
		cfg.Server.Port = port
	}
	if store := os.Getenv("RECON_STORE"); store != "" {
		cfg.Server.Store = store
	}
	if upstream := os.Getenv("PROXY_UPSTREAM"); upstream != "" {
		cfg.Server.ProxyUpstream = upstream
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := envInt("DB_PORT"); port > 0 {
		cfg.Database.Port = port
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}

	// K8s sets REDIS_SERVICE_HOST and REDIS_SERVICE_PORT for services
	if host := os.Getenv("REDIS_SERVICE_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if port := envInt("REDIS_SERVICE_PORT"); port > 0 {
		cfg.Redis.Port = port
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	cfg.Archive.applyEnv()

	if url := os.Getenv("REMOTE_URL"); url != "" {
		cfg.Client.RemoteURL = url
	}
	if name := os.Getenv("RECON_USER_NAME"); name != "" {
		cfg.Client.UserName = name
	}
	if dir := os.Getenv("RECON_DATA_DIR"); dir != "" {
		cfg.Client.DataDir = dir
	}
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
