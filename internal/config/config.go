package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yml"

// Config holds the console's configuration.
type Config struct {
	Server struct {
		Port            string        `yaml:"port" validate:"required"`
		CookieName      string        `yaml:"cookie_name" validate:"required"`
		SecureCookie    bool          `yaml:"secure_cookie"`
		SessionIdleTTL  time.Duration `yaml:"session_idle_ttl"`
		LandingPath     string        `yaml:"landing_path" validate:"required,startswith=/"`
		LoginPath       string        `yaml:"login_path" validate:"required,startswith=/"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Backend struct {
		URL       string        `yaml:"url" validate:"required,url"`
		Timeout   time.Duration `yaml:"timeout"`
		LoginPath string        `yaml:"login_path" validate:"required"`
		Breaker   struct {
			Enabled      bool          `yaml:"enabled"`
			MaxRequests  uint32        `yaml:"max_requests"`
			Interval     time.Duration `yaml:"interval"`
			Timeout      time.Duration `yaml:"timeout"`
			MinRequests  uint32        `yaml:"min_requests"`
			FailureRatio float64       `yaml:"failure_ratio" validate:"gte=0,lte=1"`
		} `yaml:"breaker"`
	} `yaml:"backend"`
	Storage struct {
		Driver  string `yaml:"driver" validate:"oneof=memory postgres sqlite"`
		DSN     string `yaml:"dsn" validate:"required_unless=Driver memory"`
		SealKey string `yaml:"seal_key"`
		// TokenRetention bounds how long stored tokens outlive their last login.
		TokenRetention time.Duration `yaml:"token_retention"`
	} `yaml:"storage"`
	Cache struct {
		Driver string        `yaml:"driver" validate:"oneof=memory redis"`
		TTL    time.Duration `yaml:"ttl"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token" validate:"required_if=Enabled true"`
		ChatID   int64  `yaml:"chat_id" validate:"required_if=Enabled true"`
	} `yaml:"telegram"`
}

// LoadConfig reads configuration from the specified YAML file, applies
// defaults and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyDefaults fills every unset field that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = "console_session"
	}
	if c.Server.SessionIdleTTL == 0 {
		c.Server.SessionIdleTTL = 12 * time.Hour
	}
	if c.Server.LandingPath == "" {
		c.Server.LandingPath = "/announcements"
	}
	if c.Server.LoginPath == "" {
		c.Server.LoginPath = "/login"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Backend.LoginPath == "" {
		c.Backend.LoginPath = "auth/login/"
	}
	if c.Backend.Breaker.MaxRequests == 0 {
		c.Backend.Breaker.MaxRequests = 1
	}
	if c.Backend.Breaker.Interval == 0 {
		c.Backend.Breaker.Interval = 30 * time.Second
	}
	if c.Backend.Breaker.Timeout == 0 {
		c.Backend.Breaker.Timeout = 10 * time.Second
	}
	if c.Backend.Breaker.MinRequests == 0 {
		c.Backend.Breaker.MinRequests = 5
	}
	if c.Backend.Breaker.FailureRatio == 0 {
		c.Backend.Breaker.FailureRatio = 0.6
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.SealKey == "" {
		c.Storage.SealKey = os.Getenv("CONSOLE_SEAL_KEY")
	}
	if c.Storage.TokenRetention == 0 {
		c.Storage.TokenRetention = 7 * 24 * time.Hour
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

// ValidationError maps a dotted yaml path to what is wrong with it.
type ValidationError map[string]string

func (e ValidationError) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// Validate checks the configuration and returns a ValidationError listing every
// offending field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	out := make(ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Config.server.port"; drop the root type name.
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		out[path] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "startswith":
		return "must start with " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
