package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the download service.
type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	DataDir       string        `yaml:"data_dir"`
	DownloadDir   string        `yaml:"download_dir"`
	DefaultFormat string        `yaml:"default_format"`
	MaxParallel   int           `yaml:"max_parallel"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	WebDir        string        `yaml:"web_dir"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:    ":8000",
		DataDir:       "./data",
		DownloadDir:   "./downloads",
		DefaultFormat: "bestvideo+bestaudio/best",
		MaxParallel:   4,
		ProbeTimeout:  60 * time.Second,
		WebDir:        "./web",
	}
}

// yamlConfig mirrors Config with string durations for unmarshaling.
type yamlConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	DataDir       string `yaml:"data_dir"`
	DownloadDir   string `yaml:"download_dir"`
	DefaultFormat string `yaml:"default_format"`
	MaxParallel   int    `yaml:"max_parallel"`
	ProbeTimeout  string `yaml:"probe_timeout"`
	WebDir        string `yaml:"web_dir"`
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.ListenAddr != "" {
		cfg.ListenAddr = yc.ListenAddr
	}
	if yc.DataDir != "" {
		cfg.DataDir = yc.DataDir
	}
	if yc.DownloadDir != "" {
		cfg.DownloadDir = yc.DownloadDir
	}
	if yc.DefaultFormat != "" {
		cfg.DefaultFormat = yc.DefaultFormat
	}
	if yc.MaxParallel != 0 {
		cfg.MaxParallel = yc.MaxParallel
	}
	if yc.ProbeTimeout != "" {
		d, err := time.ParseDuration(yc.ProbeTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse probe_timeout: %w", err)
		}
		cfg.ProbeTimeout = d
	}
	if yc.WebDir != "" {
		cfg.WebDir = yc.WebDir
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides.
// Environment variables use the VIDGRAB_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("VIDGRAB_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("VIDGRAB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("VIDGRAB_DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("VIDGRAB_DEFAULT_FORMAT"); v != "" {
		c.DefaultFormat = v
	}
	if v := os.Getenv("VIDGRAB_MAX_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse VIDGRAB_MAX_PARALLEL: %w", err)
		}
		c.MaxParallel = n
	}
	if v := os.Getenv("VIDGRAB_PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse VIDGRAB_PROBE_TIMEOUT: %w", err)
		}
		c.ProbeTimeout = d
	}
	if v := os.Getenv("VIDGRAB_WEB_DIR"); v != "" {
		c.WebDir = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.DownloadDir == "" {
		return errors.New("config: download_dir is required")
	}
	if c.MaxParallel <= 0 {
		return errors.New("config: max_parallel must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("config: probe_timeout must be positive")
	}
	return nil
}
