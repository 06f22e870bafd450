package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

type Config struct {
	APIURL         string        `env:"API_URL,         default=http://localhost:8080/api/v1"`
	WSURL          string        `env:"WS_URL,          default=ws://localhost:8080/ws"`
	AppURL         string        `env:"APP_URL,         default=http://localhost:3000"`
	LogLevel       string        `env:"LOG_LEVEL,       default=info"`
	LogPretty      bool          `env:"LOG_PRETTY,      default=true"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=15s"`

	Storage StorageConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Server  ServerConfig
}

type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER, default=file"`
	Dir    string `env:"STORAGE_DIR"`
	// Secret seals the session file at rest when set.
	Secret string `env:"STORAGE_SECRET"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=psyportal"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,  default=0"`
	TTL      time.Duration `env:"REDIS_TTL, default=720h"`
}

// ServerConfig is read by the development stub backend only.
type ServerConfig struct {
	Port      string        `env:"PORT,       default=8080"`
	JWTSecret string        `env:"JWT_SECRET, default=dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,  default=15m"`
	Seed      bool          `env:"SEED,       default=true"`
}

// Load reads a .env file when present, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Process(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// Process fills a Config from l and checks the values that have a closed set.
func Process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverMongo:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER %q: want memory, file, redis or mongo", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == DriverRedis && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("STORAGE_DRIVER redis needs REDIS_ADDR")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return &cfg, nil
}
