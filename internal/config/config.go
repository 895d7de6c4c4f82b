package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env     string
	HTTP    HTTP
	DB      DB
	Storage Storage
	Auth    Auth
	Sync    Sync
	Logger  Logger
}

type HTTP struct {
	Address         string        `env:"RUN_ADDRESS"`
	Prefix          string        `env:"API_PREFIX"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"`
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
}

type Storage struct {
	Driver string `env:"STORAGE_DRIVER"`
}

type Auth struct {
	Required  bool   `env:"AUTH_REQUIRED"`
	JWTSecret string `env:"JWT_SECRET"`
}

type Sync struct {
	MaxBatchSize      int    `env:"SYNC_MAX_BATCH_SIZE"`
	DefaultDeltaLimit int    `env:"SYNC_DEFAULT_DELTA_LIMIT"`
	MaxDeltaLimit     int    `env:"SYNC_MAX_DELTA_LIMIT"`
	Version           string `env:"SYNC_VERSION"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("api_prefix", "/api")
	v.SetDefault("http_read_timeout", 10*time.Second)
	v.SetDefault("http_write_timeout", 30*time.Second)
	v.SetDefault("http_shutdown_timeout", 10*time.Second)
	v.SetDefault("storage_driver", DriverPostgres)
	v.SetDefault("auth_required", false)
	v.SetDefault("sync_max_batch_size", 100)
	v.SetDefault("sync_default_delta_limit", 100)
	v.SetDefault("sync_max_delta_limit", 1000)
	v.SetDefault("sync_version", "1.0.0")
	v.SetDefault("log_level", "")
}

// Load читает .env (если есть) и переменные окружения
func Load() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromViper(viper.GetViper())
}

// FromViper собирает конфигурацию из viper. Флаги cobra привязываются к тем же ключам
func FromViper(v *viper.Viper) *Config {
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Env: v.GetString("app_env"),
		HTTP: HTTP{
			Address:         v.GetString("run_address"),
			Prefix:          strings.TrimRight(v.GetString("api_prefix"), "/"),
			ReadTimeout:     v.GetDuration("http_read_timeout"),
			WriteTimeout:    v.GetDuration("http_write_timeout"),
			ShutdownTimeout: v.GetDuration("http_shutdown_timeout"),
		},
		DB:      DB{DatabaseURI: v.GetString("database_uri")},
		Storage: Storage{Driver: strings.ToLower(v.GetString("storage_driver"))},
		Auth: Auth{
			Required:  v.GetBool("auth_required"),
			JWTSecret: v.GetString("jwt_secret"),
		},
		Sync: Sync{
			MaxBatchSize:      v.GetInt("sync_max_batch_size"),
			DefaultDeltaLimit: v.GetInt("sync_default_delta_limit"),
			MaxDeltaLimit:     v.GetInt("sync_max_delta_limit"),
			Version:           v.GetString("sync_version"),
		},
		Logger: Logger{LogLevel: v.GetString("log_level")},
	}
}
