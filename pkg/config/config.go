package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/biocoder/pkg/coder"
)

// Environment variables that override the file
const (
	EnvAPIKey  = "BIOCODER_API_KEY"
	EnvDataDir = "BIOCODER_DATA_DIR"
	EnvConfig  = "BIOCODER_CONFIG"
)

// Config represents the biocoder configuration
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	Port     int      `yaml:"port"`
	Bind     string   `yaml:"bind"`
	Security Security `yaml:"security"`
	Logging  Logging  `yaml:"logging"`
	Coder    Coder    `yaml:"coder"`
}

// Security contains security-related configuration
type Security struct {
	APIKey          string `yaml:"api_key"`
	MaxFrameSymbols int    `yaml:"max_frame_symbols"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Coder holds the coder construction parameters. Every stream coded with one
// configuration must be decoded with the same one.
type Coder struct {
	NeuralPrediction      bool    `yaml:"neural_prediction"`
	SynapticAdaptation    bool    `yaml:"synaptic_adaptation"`
	RedundancyElimination bool    `yaml:"redundancy_elimination"`
	ContextWindowSize     int     `yaml:"context_window_size"`
	AdaptationRate        float64 `yaml:"adaptation_rate"`
	RedundancyThreshold   float64 `yaml:"redundancy_threshold"`
	AlphabetSize          int     `yaml:"alphabet_size"`
	MinValue              float64 `yaml:"min_value"`
	MaxValue              float64 `yaml:"max_value"`
	TemporalDecay         float64 `yaml:"temporal_decay"`
	FrequencyCeiling      uint32  `yaml:"frequency_ceiling"`
	SynapticBoost         uint32  `yaml:"synaptic_boost"`
	HistoryCapacity       int     `yaml:"history_capacity"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Security: Security{
			APIKey:          "auto",
			MaxFrameSymbols: 1 << 20,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Coder: FromCoderConfig(coder.DefaultConfig()),
	}
}

// FromCoderConfig converts a coder configuration to its file form
func FromCoderConfig(c coder.Config) Coder {
	return Coder{
		NeuralPrediction:      c.EnableNeuralPrediction,
		SynapticAdaptation:    c.EnableSynapticAdaptation,
		RedundancyElimination: c.EnableRedundancyElimination,
		ContextWindowSize:     c.ContextWindowSize,
		AdaptationRate:        c.AdaptationRate,
		RedundancyThreshold:   c.RedundancyThreshold,
		AlphabetSize:          c.AlphabetSize,
		MinValue:              c.MinValue,
		MaxValue:              c.MaxValue,
		TemporalDecay:         c.TemporalDecay,
		FrequencyCeiling:      c.FrequencyCeiling,
		SynapticBoost:         c.SynapticBoost,
		HistoryCapacity:       c.HistoryCapacity,
	}
}

// CoderConfig validates the coder section and converts it
func (c *Config) CoderConfig() (coder.Config, error) {
	cc := coder.Config{
		EnableNeuralPrediction:      c.Coder.NeuralPrediction,
		EnableSynapticAdaptation:    c.Coder.SynapticAdaptation,
		EnableRedundancyElimination: c.Coder.RedundancyElimination,
		ContextWindowSize:           c.Coder.ContextWindowSize,
		AdaptationRate:              c.Coder.AdaptationRate,
		RedundancyThreshold:         c.Coder.RedundancyThreshold,
		AlphabetSize:                c.Coder.AlphabetSize,
		MinValue:                    c.Coder.MinValue,
		MaxValue:                    c.Coder.MaxValue,
		TemporalDecay:               c.Coder.TemporalDecay,
		FrequencyCeiling:            c.Coder.FrequencyCeiling,
		SynapticBoost:               c.Coder.SynapticBoost,
		HistoryCapacity:             c.Coder.HistoryCapacity,
	}
	if err := cc.Validate(); err != nil {
		return coder.Config{}, fmt.Errorf("invalid coder section: %w", err)
	}
	return cc, nil
}

// ApplyEnv overrides file values with any set environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Security.APIKey = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
}

// UnitLogPath returns the unit log file for a named log under the data dir
func (c *Config) UnitLogPath(name string) string {
	return filepath.Join(c.DataDir, "logs", name+".units")
}

// StorePath returns the stream store directory
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "streams")
}

// LoadConfig loads configuration from the specified path. Missing sections
// keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key and saves it
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./biocoder.yaml"
	}

	// ~/.config/biocoder/config.yaml on Linux and macOS
	return filepath.Join(homeDir, ".config", "biocoder", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
