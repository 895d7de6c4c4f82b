package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerURL  = "http://localhost:8080"
	defaultPrefix     = "/api"
	defaultLogLevel   = "info"
	defaultEnv        = "local"
	defaultConfigDir  = ".salesmanager"
	defaultAppVersion = "salesmanager-cli/1.0"
)

type Config struct {
	Env        string        `mapstructure:"app_env"`
	ServerURL  string        `mapstructure:"server_url"`
	Prefix     string        `mapstructure:"api_prefix"`
	LogLevel   string        `mapstructure:"log_level"`
	ConfigDir  string        `mapstructure:"config_dir"`
	DataPath   string        `mapstructure:"data_path"`
	Token      string        `mapstructure:"token"`
	DeviceID   string        `mapstructure:"device_id"`
	AppVersion string        `mapstructure:"app_version"`
	BatchSize  int           `mapstructure:"batch_size"`
	PageLimit  int           `mapstructure:"page_limit"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// GzipMinBytes тело batch больше этого размера отправляется сжатым, 0 отключает сжатие
	GzipMinBytes int `mapstructure:"gzip_min_bytes"`
}

// Load читает .env, файл конфигурации (если задан через viper) и переменные окружения
func Load(v *viper.Viper) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	configDir := v.GetString("config_dir")
	if configDir == defaultConfigDir {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		configDir = filepath.Join(home, configDir)
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	dataPath := v.GetString("data_path")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "outbox.db")
	}

	cfg := &Config{
		Env:          v.GetString("app_env"),
		ServerURL:    v.GetString("server_url"),
		Prefix:       v.GetString("api_prefix"),
		LogLevel:     v.GetString("log_level"),
		ConfigDir:    configDir,
		DataPath:     dataPath,
		Token:        v.GetString("token"),
		DeviceID:     v.GetString("device_id"),
		AppVersion:   v.GetString("app_version"),
		BatchSize:    v.GetInt("batch_size"),
		PageLimit:    v.GetInt("page_limit"),
		MaxRetries:   v.GetInt("max_retries"),
		Timeout:      v.GetDuration("timeout"),
		GzipMinBytes: v.GetInt("gzip_min_bytes"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("api_prefix", defaultPrefix)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("config_dir", defaultConfigDir)
	v.SetDefault("app_version", defaultAppVersion)
	v.SetDefault("batch_size", 100)
	v.SetDefault("page_limit", 100)
	v.SetDefault("max_retries", 3)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("gzip_min_bytes", 4096)
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url не может быть пустым")
	}
	if c.BatchSize <= 0 || c.BatchSize > 100 {
		return fmt.Errorf("batch_size должен быть от 1 до 100, получено %d", c.BatchSize)
	}
	if c.PageLimit <= 0 {
		return fmt.Errorf("page_limit должен быть положительным, получено %d", c.PageLimit)
	}
	return nil
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
