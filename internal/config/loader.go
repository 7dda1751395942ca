package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oscarka/underwritingsystem2/internal/api"
	"github.com/oscarka/underwritingsystem2/internal/crud"
)

// EnvPrefix prefixes every environment override, e.g. UW_API_BASE_URL.
const EnvPrefix = "UW_"

// Duration is a time.Duration written as "5m" or "1.5s" in every format.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

type APIConfig struct {
	BaseURL   string   `json:"base_url" yaml:"base_url" toml:"base_url" env:"BASE_URL"`
	Timeout   Duration `json:"timeout" yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
	LoginPath string   `json:"login_path" yaml:"login_path" toml:"login_path" env:"LOGIN_PATH"`
}

type SessionConfig struct {
	// Backend is one of memory, file, sqlite.
	Backend string `json:"backend" yaml:"backend" toml:"backend" env:"BACKEND"`
	Path    string `json:"path" yaml:"path" toml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" env:"LEVEL"`
	Format string `json:"format" yaml:"format" toml:"format" env:"FORMAT"`
}

type PermissionConfig struct {
	CacheDuration Duration `json:"cache_duration" yaml:"cache_duration" toml:"cache_duration" env:"CACHE_DURATION"`
}

type MockConfig struct {
	Addr        string   `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	Username    string   `json:"username" yaml:"username" toml:"username" env:"USERNAME"`
	Password    string   `json:"password" yaml:"password" toml:"password" env:"PASSWORD"`
}

// Config holds runtime parameters for the console client and the mock back-end.
type Config struct {
	API        APIConfig        `json:"api" yaml:"api" toml:"api" envPrefix:"API_"`
	Session    SessionConfig    `json:"session" yaml:"session" toml:"session" envPrefix:"SESSION_"`
	Log        LogConfig        `json:"log" yaml:"log" toml:"log" envPrefix:"LOG_"`
	Permission PermissionConfig `json:"permission" yaml:"permission" toml:"permission" envPrefix:"PERMISSION_"`
	Mock       MockConfig       `json:"mock" yaml:"mock" toml:"mock" envPrefix:"MOCK_"`
	// Resources overrides CRUD endpoints per resource name; missing
	// operations keep the conventional layout.
	Resources map[string]crud.Endpoints `json:"resources" yaml:"resources" toml:"resources"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API:        APIConfig{BaseURL: "http://localhost:5000", Timeout: Duration(10 * time.Second), LoginPath: "/login"},
		Session:    SessionConfig{Backend: "file", Path: "~/.uwconsole/session.json"},
		Log:        LogConfig{Level: "info", Format: "console"},
		Permission: PermissionConfig{CacheDuration: Duration(5 * time.Minute)},
		Mock:       MockConfig{Addr: ":5000", CORSOrigins: []string{"*"}, Username: "admin", Password: "admin123"},
	}
}

// Prefixes are the REST roots of the resources managed by CRUD coordinators.
var Prefixes = map[string]string{
	"rules":         api.PrefixRules,
	"ai-parameters": api.PrefixAIParameters,
	"channels":      api.PrefixChannels,
	"companies":     api.PrefixCompanies,
	"products":      api.PrefixProducts,
}

// Endpoints returns the CRUD endpoints for resource with overrides applied.
func (c Config) Endpoints(resource string) (crud.Endpoints, error) {
	prefix, ok := Prefixes[resource]
	if !ok {
		return crud.Endpoints{}, fmt.Errorf("unknown resource %q", resource)
	}
	ep := crud.ResourceEndpoints(prefix)
	o, ok := c.Resources[resource]
	if !ok {
		return ep, nil
	}
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&ep.List, o.List)
	merge(&ep.Create, o.Create)
	merge(&ep.Update, o.Update)
	merge(&ep.Delete, o.Delete)
	merge(&ep.View, o.View)
	merge(&ep.BatchDelete, o.BatchDelete)
	merge(&ep.Import, o.Import)
	merge(&ep.Export, o.Export)
	return ep, nil
}

// Load reads a configuration file over the defaults, based on its extension.
// Supports: .yaml/.yml, .json, .toml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays UW_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// Resolve loads path (optional), applies the environment and validates.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url: want an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	switch c.Session.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for the %s backend", c.Session.Backend)
		}
	default:
		return fmt.Errorf("session.backend: unknown %q", c.Session.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unknown %q", c.Log.Format)
	}
	if c.Permission.CacheDuration < 0 {
		return fmt.Errorf("permission.cache_duration must not be negative")
	}
	for name := range c.Resources {
		if _, ok := Prefixes[name]; !ok {
			return fmt.Errorf("resources: unknown resource %q", name)
		}
	}
	return nil
}
