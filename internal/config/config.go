// Package config loads the training configuration document.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config path is given.
const DefaultPath = "configs/config.yaml"

// Config holds all configuration for a training run.
type Config struct {
	Training TrainingConfig `yaml:"training"`
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TrainingConfig holds optimisation settings
type TrainingConfig struct {
	Device       string  `yaml:"device"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	Seed         int64   `yaml:"seed"`
}

// DataConfig holds dataset settings
type DataConfig struct {
	TrainPath string `yaml:"train_path"`
	PatchSize int    `yaml:"patch_size"`
	Workers   int    `yaml:"workers"`
}

// ModelConfig describes the network shape as plane counts between layers.
type ModelConfig struct {
	Planes []int `yaml:"planes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with the values used when a key is absent.
func DefaultConfig() *Config {
	return &Config{
		Training: TrainingConfig{
			Device:       "cpu",
			BatchSize:    16,
			LearningRate: 1e-4,
			Epochs:       100,
			Seed:         1,
		},
		Data: DataConfig{
			TrainPath: "data/train",
			PatchSize: 64,
			Workers:   4,
		},
		Model: ModelConfig{
			Planes: []int{1, 32, 32, 64, 64, 32, 1},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML document at path over the defaults, then applies a
// .env file in the working directory (if any) and WMR_* environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overrides fields from WMR_* environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("WMR_DEVICE"); v != "" {
		c.Training.Device = v
	}
	if v := os.Getenv("WMR_TRAIN_PATH"); v != "" {
		c.Data.TrainPath = v
	}
	if v := os.Getenv("WMR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"WMR_BATCH_SIZE", &c.Training.BatchSize},
		{"WMR_EPOCHS", &c.Training.Epochs},
		{"WMR_WORKERS", &c.Data.Workers},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("WMR_LEARNING_RATE"); v != "" {
		lr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("WMR_LEARNING_RATE: %w", err)
		}
		c.Training.LearningRate = lr
	}
	return nil
}

// Validate checks that the configuration can drive a training run.
func (c *Config) Validate() error {
	var errs []string
	if c.Training.BatchSize <= 0 {
		errs = append(errs, "training.batch_size must be positive")
	}
	if c.Training.LearningRate <= 0 {
		errs = append(errs, "training.learning_rate must be positive")
	}
	if c.Training.Epochs < 0 {
		errs = append(errs, "training.epochs must not be negative")
	}
	if c.Data.TrainPath == "" {
		errs = append(errs, "data.train_path is required")
	}
	if c.Data.PatchSize < 0 {
		errs = append(errs, "data.patch_size must not be negative")
	}
	if len(c.Model.Planes) < 2 {
		errs = append(errs, "model.planes needs at least two entries")
	}
	for _, n := range c.Model.Planes {
		if n <= 0 {
			errs = append(errs, "model.planes entries must be positive")
			break
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
