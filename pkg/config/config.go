// Package config loads zipedit settings from ~/.zipedit.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
)

const (
	DefaultConfigLocation = "~/.zipedit.yaml"
	ConfigEnvVar          = "ZIPEDIT_CONFIG"
	ChunkSizeEnvVar       = "ZIPEDIT_CHUNK_SIZE"
	DefaultS3Region       = "us-east-1"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	ChunkSize        int    `yaml:"chunk_size"`
	CompressionLevel string `yaml:"compression_level"`
	LogLevel         string `yaml:"log_level"`

	S3 struct {
		Region string `yaml:"region"`
	} `yaml:"s3"`
}

func Default() *Config {
	cfg := &Config{
		ChunkSize:        chunkio.DefaultChunkSize,
		CompressionLevel: "deflate",
		LogLevel:         "error",
	}
	cfg.S3.Region = DefaultS3Region
	return cfg
}

// Load reads the file named by ZIPEDIT_CONFIG, or ~/.zipedit.yaml. A missing
// file is not an error.
func Load() (*Config, error) {
	location := DefaultConfigLocation
	if fromEnv := os.Getenv(ConfigEnvVar); fromEnv != "" {
		location = fromEnv
	}
	configPath, err := homedir.Expand(location)
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

func LoadFile(configPath string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		slog.Debug("no config file, using defaults", "path", configPath)
	} else if err != nil {
		return nil, err
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, configPath, err)
	}

	if fromEnv := os.Getenv(ChunkSizeEnvVar); fromEnv != "" {
		n, err := strconv.Atoi(fromEnv)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, ChunkSizeEnvVar, fromEnv)
		}
		cfg.ChunkSize = n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: compression_level: %w", ErrInvalidConfig, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultS3Region
	}
	return nil
}

func (c *Config) Level() (codec.Level, error) {
	return codec.ParseLevel(c.CompressionLevel)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelError, nil
	}
	err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel)))
	return level, err
}
