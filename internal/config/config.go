package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kerimovok/go-pkg-utils/config"
	"gopkg.in/yaml.v3"
)

// StorageConfig holds file storage settings
type StorageConfig struct {
	UploadDir         string   `yaml:"upload_dir"`
	MaxFileSize       string   `yaml:"max_file_size"`
	WriteBufferSize   string   `yaml:"write_buffer_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	AllowedMimeTypes  []string `yaml:"allowed_mime_types"`
}

// CompressionConfig holds background compression settings
type CompressionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	QueueSize int    `yaml:"queue_size"`
	Workers   int    `yaml:"workers"`
	FFmpeg    string `yaml:"ffmpeg"`
}

// MainConfig holds the root configuration
type MainConfig struct {
	Storage     StorageConfig     `yaml:"storage"`
	Compression CompressionConfig `yaml:"compression"`
}

var (
	Config MainConfig
)

// LoadConfig loads the configuration from the specified path
func LoadConfig() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if config.GetEnv("GO_ENV") != "production" {
			log.Println("Warning: Failed to load .env file")
		}
	}

	// Read config file
	data, err := os.ReadFile("config/storage.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg MainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	// Store config globally
	Config = cfg

	log.Println("Storage configuration loaded successfully from config/storage.yaml")
	return nil
}

func applyDefaults(cfg *MainConfig) {
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}
	if cfg.Storage.MaxFileSize == "" {
		cfg.Storage.MaxFileSize = "100MB"
	}
	if cfg.Storage.WriteBufferSize == "" {
		cfg.Storage.WriteBufferSize = "32KB"
	}
	if cfg.Compression.QueueSize <= 0 {
		cfg.Compression.QueueSize = 100
	}
	if cfg.Compression.Workers <= 0 {
		cfg.Compression.Workers = 1
	}
	if cfg.Compression.FFmpeg == "" {
		cfg.Compression.FFmpeg = "ffmpeg"
	}
}

// GetConfig returns the current configuration
func GetConfig() MainConfig {
	return Config
}
