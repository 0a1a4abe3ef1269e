// Package config loads the settings of the iwainspect command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/logicossoftware/go-iwa"
	"github.com/logicossoftware/go-iwa/export"
	"github.com/logicossoftware/go-iwa/internal/logging"
)

const envPrefix = "IWA_"

// Credential store backends.
const (
	StoreNone          = "none"
	StoreMemory        = "memory"
	StoreSecretService = "secret-service"
)

type Config struct {
	Log         LogConfig         `toml:"log" yaml:"log" json:"log"`
	Limits      LimitsConfig      `toml:"limits" yaml:"limits" json:"limits"`
	Credentials CredentialsConfig `toml:"credentials" yaml:"credentials" json:"credentials"`
	Export      ExportConfig      `toml:"export" yaml:"export" json:"export"`
}

type LogConfig struct {
	Level     string `toml:"level" yaml:"level" json:"level"`
	Format    string `toml:"format" yaml:"format" json:"format"`
	AddSource bool   `toml:"add_source" yaml:"add_source" json:"add_source"`
}

// LimitsConfig mirrors iwa.Limits; zero fields keep the library defaults.
type LimitsConfig struct {
	MaxEntries            int    `toml:"max_entries" yaml:"max_entries" json:"max_entries"`
	MaxEntrySize          uint64 `toml:"max_entry_size" yaml:"max_entry_size" json:"max_entry_size"`
	MaxChunkSize          uint64 `toml:"max_chunk_size" yaml:"max_chunk_size" json:"max_chunk_size"`
	MaxComponentSize      uint64 `toml:"max_component_size" yaml:"max_component_size" json:"max_component_size"`
	MaxIterations         uint32 `toml:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	MaxMessagesPerArchive int    `toml:"max_messages_per_archive" yaml:"max_messages_per_archive" json:"max_messages_per_archive"`
}

type CredentialsConfig struct {
	Store       string `toml:"store" yaml:"store" json:"store"`
	Service     string `toml:"service" yaml:"service" json:"service"`
	MaxAttempts int    `toml:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
}

type ExportConfig struct {
	Compression string `toml:"compression" yaml:"compression" json:"compression"`
	Records     bool   `toml:"records" yaml:"records" json:"records"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Credentials: CredentialsConfig{
			Store:       StoreNone,
			Service:     "iwainspect",
			MaxAttempts: 3,
		},
		Export: ExportConfig{Compression: "none"},
	}
}

// Load reads path, applies environment overrides and validates the result.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.ApplyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return autoDetect(data, cfg)
	}
	return nil
}

// autoDetect tries TOML, then JSON, then YAML. Each attempt decodes into a
// fresh copy so a failed attempt leaves no partial values behind.
func autoDetect(data []byte, cfg *Config) error {
	try := func(fn func(*Config) error) bool {
		c := *cfg
		if fn(&c) != nil {
			return false
		}
		*cfg = c
		return true
	}
	if try(func(c *Config) error { _, err := toml.Decode(string(data), c); return err }) {
		return nil
	}
	if try(func(c *Config) error { return json.Unmarshal(data, c) }) {
		return nil
	}
	if try(func(c *Config) error { return yaml.Unmarshal(data, c) }) {
		return nil
	}
	return errors.New("unable to parse config file (tried TOML, JSON, YAML)")
}

// ApplyEnvOverrides applies IWA_* variables looked up through lookup.
func (c *Config) ApplyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("CREDENTIAL_STORE", &c.Credentials.Store)
	str("CREDENTIAL_SERVICE", &c.Credentials.Service)
	str("EXPORT_COMPRESSION", &c.Export.Compression)

	if v, ok := lookup(envPrefix + "MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_ATTEMPTS: %w", envPrefix, err)
		}
		c.Credentials.MaxAttempts = n
	}
	if v, ok := lookup(envPrefix + "MAX_ITERATIONS"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sMAX_ITERATIONS: %w", envPrefix, err)
		}
		c.Limits.MaxIterations = uint32(n)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.Credentials.Store {
	case StoreNone, StoreMemory, StoreSecretService:
	default:
		errs = append(errs, fmt.Errorf("unknown credential store %q", c.Credentials.Store))
	}
	if c.Credentials.Store != StoreNone && c.Credentials.Service == "" {
		errs = append(errs, errors.New("credential service name is required"))
	}
	if c.Credentials.MaxAttempts < 0 {
		errs = append(errs, errors.New("max_attempts must not be negative"))
	}
	if _, err := export.ParseCompression(c.Export.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Limits.MaxEntries < 0 || c.Limits.MaxMessagesPerArchive < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	return errors.Join(errs...)
}

// LoggingConfig converts the log section. It assumes Validate passed.
func (c *Config) LoggingConfig() logging.Config {
	lvl, _ := logging.ParseLevel(c.Log.Level)
	f, _ := logging.ParseFormat(c.Log.Format)
	return logging.Config{Level: lvl, Format: f, AddSource: c.Log.AddSource}
}

func (c *Config) IWALimits() iwa.Limits {
	return iwa.Limits{
		MaxEntries:            c.Limits.MaxEntries,
		MaxEntrySize:          c.Limits.MaxEntrySize,
		MaxChunkSize:          c.Limits.MaxChunkSize,
		MaxComponentSize:      c.Limits.MaxComponentSize,
		MaxIterations:         c.Limits.MaxIterations,
		MaxMessagesPerArchive: c.Limits.MaxMessagesPerArchive,
	}
}
