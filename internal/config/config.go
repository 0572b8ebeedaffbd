package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "canvascli/internal/errors"
)

// Config represents the complete application configuration.
type Config struct {
	// APIKey is the Canvas bearer credential (CANVAS_API_KEY).
	APIKey string `yaml:"api_key" envconfig:"API_KEY" validate:"required"`

	// BaseURL is the Canvas API root including the version path,
	// e.g. https://school.instructure.com/api/v1 (CANVAS_BASE_URL).
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`

	HTTP    HTTPConfig    `yaml:"http" envconfig:"HTTP"`
	Rate    RateConfig    `yaml:"rate" envconfig:"RATE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOG"`
}

// HTTPConfig contains request and pagination tuning.
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s" validate:"gt=0"`
	PerPage        int           `yaml:"per_page" envconfig:"PER_PAGE" default:"100" validate:"gt=0,lte=100"`
	MaxRetries     int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"4" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" envconfig:"RETRY_BASE_DELAY" default:"500ms" validate:"gt=0"`
}

// RateConfig contains client-side throttling configuration. Pacing is
// per worker; there is no shared global budget.
type RateConfig struct {
	MinInterval time.Duration `yaml:"min_interval" envconfig:"MIN_INTERVAL" default:"200ms" validate:"gt=0"`
	Burst       int           `yaml:"burst" envconfig:"BURST" default:"1" validate:"gte=1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// configFile is the optional on-disk override, resolved relative to the
// working directory.
const configFile = "config.yaml"

// Load loads configuration from environment variables and config file.
// Environment values take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("CANVAS", &cfg); err != nil {
		return nil, apperrors.NewConfigError("environment", err.Error())
	}

	// Load from config file if exists
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, apperrors.NewConfigError(configFile, err.Error())
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence).
// envconfig fills tuning fields with their defaults, so the file only
// supplies fields that have no default and no environment value.
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.APIKey == "" {
		envConfig.APIKey = fileConfig.APIKey
	}
	if envConfig.BaseURL == "" {
		envConfig.BaseURL = fileConfig.BaseURL
	}
	if envConfig.Logging.FilePath == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	return envConfig
}

// LoadLogging loads only the logging section of the configuration, for
// commands that never talk to the API: the rollup step runs standalone
// and must not require Canvas credentials.
func LoadLogging() (LoggingConfig, error) {
	var cfg LoggingConfig
	if err := envconfig.Process("CANVAS_LOG", &cfg); err != nil {
		return cfg, apperrors.NewConfigError("environment", err.Error())
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return cfg, apperrors.NewConfigError("logging", err.Error())
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return apperrors.NewConfigError(errs[0].Namespace(), fmt.Sprintf("failed %q validation", errs[0].Tag()))
		}
		return apperrors.NewConfigError("config", err.Error())
	}
	return nil
}
