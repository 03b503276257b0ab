package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Client  ClientConfig  `mapstructure:"client"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ClientConfig struct {
	Language   string `mapstructure:"language" validate:"required"`
	Specialty  string `mapstructure:"specialty"`
	ErrorReply string `mapstructure:"error_reply"`
}

type UploadConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1"`
}

type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// API
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", "30s")

	// Client
	v.SetDefault("client.language", "en")
	v.SetDefault("client.specialty", "general")

	// Upload
	v.SetDefault("upload.poll_interval", "1s")
	v.SetDefault("upload.max_attempts", 30)

	// Storage
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", home+"/.guestchat/state.db")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("api.base_url", "GUESTCHAT_API_URL")
	v.BindEnv("api.timeout", "GUESTCHAT_API_TIMEOUT")
	v.BindEnv("client.language", "GUESTCHAT_LANGUAGE")
	v.BindEnv("client.specialty", "GUESTCHAT_SPECIALTY")
	v.BindEnv("storage.path", "GUESTCHAT_STORAGE_PATH")
	v.BindEnv("logging.level", "GUESTCHAT_LOG_LEVEL")
	v.BindEnv("logging.file", "GUESTCHAT_LOG_FILE")
}
