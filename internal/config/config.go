// Package config loads and validates the relay configuration from a single
// YAML file, with optional checksum pinning of that file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	API     APIConfig     `yaml:"api"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name          string   `yaml:"name"`
	LogLevel      string   `yaml:"log_level"`
	LogFormat     string   `yaml:"log_format"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// StateConfig defines where the engine registry database lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// Duration is a time.Duration that unmarshals from "10s"-style YAML scalars.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads, verifies and parses configuration from a file. If a checksum
// file exists next to it (see ChecksumPath), the file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	if err := VerifyPinnedChecksum(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "enginerelay"
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = "INFO"
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = "json"
	}
	if cfg.Service.SweepInterval == 0 {
		cfg.Service.SweepInterval = Duration(10 * time.Second)
	}
	if cfg.State.Path == "" {
		cfg.State.Path = "data/engines.db"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:9666"
	}
}

func validate(cfg *Config) error {
	if cfg.Service.SweepInterval.Std() < time.Second {
		return fmt.Errorf("service.sweep_interval must be at least 1s, got %s", cfg.Service.SweepInterval.Std())
	}
	switch cfg.Service.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text, got %q", cfg.Service.LogFormat)
	}
	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is empty")
	}
	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is empty")
	}
	return nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
