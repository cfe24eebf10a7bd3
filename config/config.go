// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
	"oxidecast/registry"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Models  ModelsConfig  `yaml:"models"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ModelsConfig struct {
	Dir       string     `yaml:"dir"`
	Artifacts []Artifact `yaml:"artifacts"`
}

// Artifact names the model and scaler files for one oxide. Relative paths are
// resolved against ModelsConfig.Dir.
type Artifact struct {
	Oxide  string `yaml:"oxide"`
	Model  string `yaml:"model"`
	Scaler string `yaml:"scaler"`
}

// Sources resolves every artifact into the paths the registry loads from.
func (m ModelsConfig) Sources() []registry.Source {
	sources := make([]registry.Source, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		sources = append(sources, registry.Source{
			Oxide:      a.Oxide,
			ModelPath:  m.Path(a.Model),
			ScalerPath: m.Path(a.Scaler),
		})
	}
	return sources
}

// Path resolves name against the models directory.
func (m ModelsConfig) Path(name string) string {
	if filepath.IsAbs(name) || m.Dir == "" {
		return name
	}
	return filepath.Join(m.Dir, name)
}

type HTTPConfig struct {
	// LegacyErrors reports every failure with status 200 and only the
	// {"error": ...} body, for clients written against the first release.
	LegacyErrors bool `yaml:"legacy_errors"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxBodyBytes:   1 << 20,
			AllowedOrigins: []string{"*"},
		},
		Models: ModelsConfig{
			Dir: "models_scalers",
			Artifacts: []Artifact{
				{Oxide: "CaO", Model: "ca_model.json", Scaler: "ca_scaler.json"},
				{Oxide: "SiO2", Model: "si_model.json", Scaler: "si_scaler.json"},
				{Oxide: "Al2O3", Model: "al_model.json", Scaler: "al_scaler.json"},
				{Oxide: "Fe2O3", Model: "fe_model.json", Scaler: "fe_scaler.json"},
			},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Journal: JournalConfig{Path: "oxidecast.db"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads path on top of the defaults. A missing file is not an error when
// path is the default "config.yaml"; an explicitly named file must exist.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("OXIDECAST_HOST"); ok {
		c.Server.Host = v
	}
	if v, ok := lookup("OXIDECAST_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OXIDECAST_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("OXIDECAST_MODELS_DIR"); ok {
		c.Models.Dir = v
	}
	if v, ok := lookup("OXIDECAST_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("OXIDECAST_JOURNAL_PATH"); ok && v != "" {
		c.Journal.Path = v
		c.Journal.Enabled = true
	}
	if v, ok := lookup("OXIDECAST_LEGACY_ERRORS"); ok {
		legacy, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OXIDECAST_LEGACY_ERRORS: %w", err)
		}
		c.HTTP.LegacyErrors = legacy
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	return validateArtifacts(c.Models.Artifacts)
}

func validateArtifacts(artifacts []Artifact) error {
	seen := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		if !registry.IsOxide(a.Oxide) {
			return fmt.Errorf("models.artifacts: unknown oxide %q", a.Oxide)
		}
		if seen[a.Oxide] {
			return fmt.Errorf("models.artifacts: duplicate oxide %q", a.Oxide)
		}
		seen[a.Oxide] = true
		if a.Model == "" || a.Scaler == "" {
			return fmt.Errorf("models.artifacts: %s needs both model and scaler paths", a.Oxide)
		}
	}
	for _, oxide := range registry.Oxides {
		if !seen[oxide] {
			return fmt.Errorf("models.artifacts: missing oxide %q", oxide)
		}
	}
	return nil
}
