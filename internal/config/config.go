// Package config loads runtime settings for the surveyd and draftctl
// binaries: defaults, then an optional .env file, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings such as "750ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config: line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Rules    RulesConfig    `yaml:"rules"`
	Store    StoreConfig    `yaml:"store"`
	Session  SessionConfig  `yaml:"session"`
	API      APIConfig      `yaml:"api"`
	Verbose  bool           `yaml:"verbose"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr" validate:"required"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	RequestTimeout  Duration `yaml:"request_timeout" validate:"gte=0"`
}

type ProviderConfig struct {
	Name   string `yaml:"name" validate:"oneof=stub gemini"`
	APIKey string `yaml:"api_key" validate:"required_if=Name gemini"`
	Model  string `yaml:"model"`
}

type CacheConfig struct {
	Driver string `yaml:"driver" validate:"oneof=none memory sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver sqlite,required_if=Driver postgres"`
}

// RulesConfig controls survey quality checks. Failures are only logged
// unless Enforce is set.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Enforce bool   `yaml:"enforce"`
	Engine  string `yaml:"engine" validate:"oneof=expr cel js"`
}

type StoreConfig struct {
	Driver     string   `yaml:"driver" validate:"oneof=memory redis sqlite postgres mongo"`
	DSN        string   `yaml:"dsn" validate:"required_unless=Driver memory"`
	Database   string   `yaml:"database" validate:"required_if=Driver mongo"`
	Collection string   `yaml:"collection"`
	Prefix     string   `yaml:"prefix"`
	TTL        Duration `yaml:"ttl" validate:"gte=0"`
}

type SessionConfig struct {
	AutosaveDelay Duration `yaml:"autosave_delay" validate:"gte=0"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// Default returns the built-in settings: stub provider, in-memory cache and
// store, expr rules.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: Duration(10 * time.Second),
			RequestTimeout:  Duration(60 * time.Second),
		},
		Provider: ProviderConfig{Name: "stub"},
		Cache:    CacheConfig{Driver: "memory"},
		Rules:    RulesConfig{Enabled: true, Engine: "expr"},
		Store:    StoreConfig{Driver: "memory"},
		Session:  SessionConfig{AutosaveDelay: Duration(300 * time.Millisecond)},
		API:      APIConfig{BaseURL: "http://localhost:8000"},
	}
}

// Options controls where Load reads from.
type Options struct {
	// EnvFile is loaded with godotenv when it exists. Defaults to ".env".
	EnvFile string
	// File is an optional YAML file. CONFIG_FILE is used when empty.
	File string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load resolves the configuration and validates it.
func Load(opts Options) (Config, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", opts.EnvFile, err)
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Default()
	file := strings.TrimSpace(opts.File)
	if file == "" {
		file = strings.TrimSpace(getenv("CONFIG_FILE"))
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", file, err)
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	setString(&cfg.Server.Addr, getenv("SURVEYD_ADDR"))
	if list := parseList(getenv("API_ALLOWED_ORIGINS")); len(list) > 0 {
		cfg.Server.AllowedOrigins = list
	}
	setString(&cfg.Provider.Name, strings.ToLower(getenv("SURVEY_PROVIDER")))
	setString(&cfg.Provider.APIKey, getenv("GEMINI_API_KEY"))
	setString(&cfg.Provider.Model, getenv("GEMINI_MODEL"))
	setString(&cfg.Cache.Driver, strings.ToLower(getenv("CACHE_DRIVER")))
	setString(&cfg.Cache.DSN, getenv("CACHE_DSN"))
	setString(&cfg.Rules.Engine, strings.ToLower(getenv("RULES_ENGINE")))
	setString(&cfg.Store.Driver, strings.ToLower(getenv("DRAFT_STORE")))
	setString(&cfg.Store.DSN, getenv("DRAFT_STORE_DSN"))
	setString(&cfg.Store.Database, getenv("DRAFT_STORE_DATABASE"))
	setString(&cfg.API.BaseURL, getenv("DRAFT_API_URL"))

	for name, target := range map[string]*bool{
		"RULES_ENABLED": &cfg.Rules.Enabled,
		"RULES_ENFORCE": &cfg.Rules.Enforce,
	} {
		raw := strings.TrimSpace(getenv(name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*target = value
	}
	for name, target := range map[string]*Duration{
		"AUTOSAVE_DELAY":   &cfg.Session.AutosaveDelay,
		"SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
		"REQUEST_TIMEOUT":  &cfg.Server.RequestTimeout,
		"DRAFT_STORE_TTL":  &cfg.Store.TTL,
	} {
		raw := strings.TrimSpace(getenv(name))
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*target = Duration(parsed)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return fmt.Errorf("config: invalid %s (%s)", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func setString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
