// Package config loads didauth configuration: defaults, then an optional
// YAML file, then environment overrides. Command-line flags are applied last
// by the commands themselves.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	PublicDir       string        `yaml:"publicDir"`
	WelcomeMessage  string        `yaml:"welcomeMessage"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

type RegistryConfig struct {
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:          ":8080",
			WelcomeMessage:  "Welcome to didauth!",
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    64 << 10,
		},
		Registry: RegistryConfig{
			Backend: "memory",
			Options: map[string]string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables already set are not overridden and
// missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load returns the effective configuration. An empty path skips the file; a
// non-empty path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		var parsed Config
		if err := decodeStrict(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		Merge(&cfg, parsed)
	}
	if err := ApplyEnvOverrides(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, out *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Merge copies every non-zero field of src over dst. Registry options are
// merged key by key.
func Merge(dst *Config, src Config) {
	if src.Server.Listen != "" {
		dst.Server.Listen = src.Server.Listen
	}
	if src.Server.PublicDir != "" {
		dst.Server.PublicDir = src.Server.PublicDir
	}
	if src.Server.WelcomeMessage != "" {
		dst.Server.WelcomeMessage = src.Server.WelcomeMessage
	}
	if src.Server.RequestTimeout != 0 {
		dst.Server.RequestTimeout = src.Server.RequestTimeout
	}
	if src.Server.ShutdownTimeout != 0 {
		dst.Server.ShutdownTimeout = src.Server.ShutdownTimeout
	}
	if src.Server.MaxBodyBytes != 0 {
		dst.Server.MaxBodyBytes = src.Server.MaxBodyBytes
	}
	if src.Registry.Backend != "" {
		dst.Registry.Backend = src.Registry.Backend
	}
	for k, v := range src.Registry.Options {
		if dst.Registry.Options == nil {
			dst.Registry.Options = map[string]string{}
		}
		dst.Registry.Options[k] = v
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.Log.File != "" {
		dst.Log.File = src.Log.File
	}
}

// envOptions maps environment variables onto registry backend options.
var envOptions = map[string]string{
	"DATABASE_URL":            "database_url",
	"DIDAUTH_LOCALFS_DIR":     "dir",
	"DIDAUTH_REGISTRY_TARGET": "target",
}

// ApplyEnvOverrides applies DIDAUTH_* (and DATABASE_URL) variables read
// through getenv.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) error {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if v := get("DIDAUTH_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := get("DIDAUTH_PUBLIC_DIR"); v != "" {
		cfg.Server.PublicDir = v
	}
	if v := get("DIDAUTH_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DIDAUTH_REQUEST_TIMEOUT: %w", err)
		}
		cfg.Server.RequestTimeout = d
	}
	if v := get("DIDAUTH_REGISTRY_BACKEND"); v != "" {
		cfg.Registry.Backend = v
	}
	for env, opt := range envOptions {
		if v := get(env); v != "" {
			if cfg.Registry.Options == nil {
				cfg.Registry.Options = map[string]string{}
			}
			cfg.Registry.Options[opt] = v
		}
	}
	if v := get("DIDAUTH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := get("DIDAUTH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := get("DIDAUTH_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.requestTimeout must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdownTimeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.maxBodyBytes must be positive"))
	}
	if strings.TrimSpace(c.Registry.Backend) == "" {
		errs = append(errs, errors.New("registry.backend is required"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
