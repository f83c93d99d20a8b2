// Package config loads the command's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "sleeve.yaml"

// StoreConfig selects where placed openings are kept.
type StoreConfig struct {
	Dir      string `yaml:"dir" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// Config is the full command configuration.
type Config struct {
	// Model is the building model script evaluated when no path is given
	// on the command line.
	Model string `yaml:"model"`

	// MEPTitleContains picks the mechanical model by document title.
	MEPTitleContains string `yaml:"mep_title_contains" validate:"required"`

	// OpeningFamily is the family instantiated for each opening.
	OpeningFamily string `yaml:"opening_family" validate:"required"`

	// WidthParam and HeightParam name the family's size parameters.
	WidthParam  string `yaml:"width_param" validate:"required"`
	HeightParam string `yaml:"height_param" validate:"required"`

	// Workers bounds parallel segment processing. 0 means one per element.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	// EvalTimeout bounds model script evaluation.
	EvalTimeout time.Duration `yaml:"eval_timeout" validate:"gt=0"`

	// MetricsTextfile, when set, receives run counters in Prometheus text
	// format after each run.
	MetricsTextfile string `yaml:"metrics_textfile"`

	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		MEPTitleContains: "ОВ",
		OpeningFamily:    "Отверстия",
		WidthParam:       "Ширина",
		HeightParam:      "Высота",
		Workers:          4,
		EvalTimeout:      5 * time.Second,
		Store:            StoreConfig{Dir: ".sleeve"},
		Log:              LogConfig{Level: "info"},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes c to path as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("config: create directory for %s: %w", path, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
