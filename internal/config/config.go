// Package config loads project.toml for every binary in the repository.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

const (
	defaultAddr            = ":8080"
	defaultProtectorAddr   = ":5000"
	defaultMaxUploadMB     = 32
	defaultDownstreamURL   = "http://localhost:5000/upload"
	defaultFileField       = "pdfFile"
	defaultSecretField     = "password"
	defaultSecret          = "defaultPassword"
	defaultStreamName      = "DOCUMENTS"
	defaultProcessedSubj   = "documents.processed"
	defaultMetricsNS       = "doc_gateway"
	defaultPageWidth       = 595.28
	defaultPageHeight      = 841.89
	defaultMargin          = 40
	defaultFontSize        = 12
	bytesPerMB             = 1 << 20
	defaultUploadDirectory = "doc-gateway"
	logDirMode             = 0o750
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	ProtectorAddr  string   `toml:"protector_addr"`
	UploadDir      string   `toml:"upload_dir"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxUploadMB    int      `toml:"max_upload_mb"`
}

// RenderConfig holds the page geometry in PDF points.
type RenderConfig struct {
	PageWidth  float64 `toml:"page_width"`
	PageHeight float64 `toml:"page_height"`
	Margin     float64 `toml:"margin"`
	FontSize   float64 `toml:"font_size"`
	Workers    int     `toml:"workers"`
}

// ProtectConfig describes the downstream protection service.
type ProtectConfig struct {
	DownstreamURL            string `toml:"downstream_url"`
	FileField                string `toml:"file_field"`
	SecretField              string `toml:"secret_field"`
	DefaultSecret            string `toml:"default_secret"`
	ResponseHeaderTimeoutSec int    `toml:"response_header_timeout_sec"`
}

// NATSConfig holds the optional event publishing settings. An empty URL disables
// publishing.
type NATSConfig struct {
	URL              string `toml:"url"`
	StreamName       string `toml:"stream_name"`
	ProcessedSubject string `toml:"processed_subject"`
}

// PathsConfig holds common path configurations.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	InputDir    string `toml:"input_dir"`
	OutputDir   string `toml:"output_dir"`
}

// MetricsConfig holds the Prometheus settings.
type MetricsConfig struct {
	Namespace string `toml:"namespace"`
}

// Config represents the structure of the project.toml file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Render  RenderConfig  `toml:"render"`
	Protect ProtectConfig `toml:"protect"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
	Metrics MetricsConfig `toml:"metrics"`
}

// Default returns a configuration with every field set to its default.
func Default() Config {
	var cfg Config

	cfg.ApplyDefaults()

	return cfg
}

// FindAndLoad locates project.toml from the working directory upward and loads it.
// It returns the project root along with the configuration.
func FindAndLoad() (Config, string, error) {
	projectRoot, configPath, findErr := configurator.FindProjectRoot(".")
	if findErr != nil {
		return Config{}, "", fmt.Errorf("could not find project root: %w", findErr)
	}

	cfg, loadErr := SafeLoad(configPath)
	if loadErr != nil {
		return Config{}, "", loadErr
	}

	return cfg, projectRoot, nil
}

// SafeLoad loads the TOML config, allowing a missing file without error.
func SafeLoad(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return Config{}, fmt.Errorf("error loading config file: %w", err)
	}

	return cfg, nil
}

// Load reads and parses a project.toml file and fills unset fields with defaults.
func Load(path string) (Config, error) {
	var cfg Config

	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults fills zero-value fields with sensible defaults.
func (cfg *Config) ApplyDefaults() {
	cfg.Server.Addr = defaultStringEmpty(cfg.Server.Addr, defaultAddr)
	cfg.Server.ProtectorAddr = defaultStringEmpty(cfg.Server.ProtectorAddr, defaultProtectorAddr)
	cfg.Server.UploadDir = defaultStringEmpty(
		cfg.Server.UploadDir,
		filepath.Join(os.TempDir(), defaultUploadDirectory),
	)
	cfg.Server.MaxUploadMB = defaultIntNonPositive(cfg.Server.MaxUploadMB, defaultMaxUploadMB)

	cfg.Render.PageWidth = defaultFloatNonPositive(cfg.Render.PageWidth, defaultPageWidth)
	cfg.Render.PageHeight = defaultFloatNonPositive(cfg.Render.PageHeight, defaultPageHeight)
	cfg.Render.Margin = defaultFloatNonPositive(cfg.Render.Margin, defaultMargin)
	cfg.Render.FontSize = defaultFloatNonPositive(cfg.Render.FontSize, defaultFontSize)

	cfg.Protect.DownstreamURL = defaultStringEmpty(cfg.Protect.DownstreamURL, defaultDownstreamURL)
	cfg.Protect.FileField = defaultStringEmpty(cfg.Protect.FileField, defaultFileField)
	cfg.Protect.SecretField = defaultStringEmpty(cfg.Protect.SecretField, defaultSecretField)
	cfg.Protect.DefaultSecret = defaultStringEmpty(cfg.Protect.DefaultSecret, defaultSecret)

	cfg.NATS.StreamName = defaultStringEmpty(cfg.NATS.StreamName, defaultStreamName)
	cfg.NATS.ProcessedSubject = defaultStringEmpty(cfg.NATS.ProcessedSubject, defaultProcessedSubj)

	cfg.Metrics.Namespace = defaultStringEmpty(cfg.Metrics.Namespace, defaultMetricsNS)
}

// MaxUploadBytes returns the upload limit in bytes.
func (cfg *Config) MaxUploadBytes() int64 {
	return int64(cfg.Server.MaxUploadMB) * bytesPerMB
}

// ResponseHeaderTimeout returns the downstream header timeout, zero meaning none.
func (cfg *Config) ResponseHeaderTimeout() time.Duration {
	if cfg.Protect.ResponseHeaderTimeoutSec <= 0 {
		return 0
	}

	return time.Duration(cfg.Protect.ResponseHeaderTimeoutSec) * time.Second
}

// LogDir returns the log directory for a binary, defaulting to <projectRoot>/logs/<name>.
func (cfg *Config) LogDir(projectRoot, name string) string {
	if cfg.Paths.BaseLogsDir != "" {
		return filepath.Join(cfg.Paths.BaseLogsDir, name)
	}

	return filepath.Join(projectRoot, "logs", name)
}

func defaultStringEmpty(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func defaultIntNonPositive(v, def int) int {
	if v <= 0 {
		return def
	}

	return v
}

func defaultFloatNonPositive(v, def float64) float64 {
	if v <= 0 {
		return def
	}

	return v
}

// SetupLogger initializes a timestamped log file in logDir, creating it if needed.
func SetupLogger(logDir string) (*logger.Logger, error) {
	mkdirErr := os.MkdirAll(logDir, logDirMode)
	if mkdirErr != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, mkdirErr)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
