// Package application wires the domain engine to its collaborators and
// exposes the analysis service used by the HTTP layer.
package application

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" decode directly.
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration, loaded from YAML with
// environment overrides for secrets and deployment-specific values.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Grounding GroundingConfig `yaml:"grounding"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port" validate:"min=1,max=65535"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// DatabaseConfig selects the verdict store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// RedisConfig holds product cache settings. An empty Addr disables the
// cache and lookups go straight to the product database.
type RedisConfig struct {
	Addr       string   `yaml:"addr"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db"`
	ProductTTL Duration `yaml:"product_ttl"`
}

// GroundingConfig holds the grounded-reasoning provider settings, including
// the retry and rate limit policy applied by the middleware chain.
type GroundingConfig struct {
	Provider      string   `yaml:"provider" validate:"oneof=anthropic openai google"`
	APIKey        string   `yaml:"api_key"`
	Model         string   `yaml:"model"`
	MaxTokens     int      `yaml:"max_tokens" validate:"min=1"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	Timeout       Duration `yaml:"timeout"`
	MaxRetries    int      `yaml:"max_retries" validate:"min=0,max=5"`
	BaseDelay     Duration `yaml:"base_delay"`
	MaxDelay      Duration `yaml:"max_delay"`
	RatePerMinute int      `yaml:"rate_per_minute" validate:"min=1"`
}

// AnalysisConfig holds the tunables of the decision engine itself.
type AnalysisConfig struct {
	// BarcodeConfidence is the trust assigned to product database readings,
	// which carry no per-field confidence of their own.
	BarcodeConfidence float64 `yaml:"barcode_confidence" validate:"gt=0,lte=1"`

	// SourceTimeout bounds each extraction source (OCR, product lookup)
	// independently; a source that misses the deadline is treated as absent.
	SourceTimeout Duration `yaml:"source_timeout"`

	MaxNameDistance    int     `yaml:"max_name_distance" validate:"min=0,max=4"`
	AgreementThreshold float64 `yaml:"agreement_threshold" validate:"gt=0,lte=1"`
	ConflictPenalty    float64 `yaml:"conflict_penalty" validate:"gt=0,lte=1"`
	CautionBand        float64 `yaml:"caution_band" validate:"gte=0,lt=1"`
	LowConfidence      float64 `yaml:"low_confidence" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the configuration used when no file or override
// supplies a value.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			AllowOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "foodgenie.db",
		},
		Redis: RedisConfig{
			ProductTTL: Duration(24 * time.Hour),
		},
		Grounding: GroundingConfig{
			Provider:      "anthropic",
			MaxTokens:     1024,
			Timeout:       Duration(20 * time.Second),
			MaxRetries:    2,
			BaseDelay:     Duration(500 * time.Millisecond),
			MaxDelay:      Duration(5 * time.Second),
			RatePerMinute: 60,
		},
		Analysis: AnalysisConfig{
			BarcodeConfidence:  0.9,
			SourceTimeout:      Duration(10 * time.Second),
			MaxNameDistance:    2,
			AgreementThreshold: 0.05,
			ConflictPenalty:    0.5,
			CautionBand:        0.2,
			LowConfidence:      0.5,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// and environment overrides, then validates the result. An empty path skips
// the file step; a missing file at a non-empty path is an error.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&config)

	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// applyEnvOverrides layers deployment environment values over the file
// configuration. Secrets are expected to arrive this way rather than in the
// YAML file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FOODGENIE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("FOODGENIE_DATABASE_DRIVER"); v != "" {
		config.Database.Driver = v
	}
	if v := os.Getenv("FOODGENIE_DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}
	if v := os.Getenv("FOODGENIE_REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	if v := os.Getenv("FOODGENIE_REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v := os.Getenv("FOODGENIE_GROUNDING_PROVIDER"); v != "" {
		config.Grounding.Provider = v
	}
	if v := os.Getenv("FOODGENIE_GROUNDING_API_KEY"); v != "" {
		config.Grounding.APIKey = v
	}
	if v := os.Getenv("FOODGENIE_GROUNDING_MODEL"); v != "" {
		config.Grounding.Model = v
	}
}
