package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/biocoder/pkg/coder"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data", config.DataDir)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "127.0.0.1", config.Bind)
	assert.Equal(t, "auto", config.Security.APIKey)
	assert.Equal(t, 1<<20, config.Security.MaxFrameSymbols)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	cc, err := config.CoderConfig()
	require.NoError(t, err)
	assert.Equal(t, coder.DefaultConfig(), cc)
}

func TestCoderConfig(t *testing.T) {
	t.Run("round trips through the file form", func(t *testing.T) {
		want := coder.DefaultConfig()
		want.EnableRedundancyElimination = false
		want.ContextWindowSize = 4
		want.AlphabetSize = 256

		config := DefaultConfig()
		config.Coder = FromCoderConfig(want)

		got, err := config.CoderConfig()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("invalid section", func(t *testing.T) {
		config := DefaultConfig()
		config.Coder.AlphabetSize = 1

		_, err := config.CoderConfig()
		assert.ErrorIs(t, err, coder.ErrConfig)
		assert.Contains(t, err.Error(), "invalid coder section")
	})
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64)

		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("generate different keys", func(t *testing.T) {
		key1, err := GenerateSecureKey(16)
		require.NoError(t, err)
		key2, err := GenerateSecureKey(16)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})

	t.Run("zero length", func(t *testing.T) {
		key, err := GenerateSecureKey(0)
		require.NoError(t, err)
		assert.Empty(t, key)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "biocoder_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "config.yaml")
		expectedConfig := DefaultConfig()
		expectedConfig.DataDir = "/custom/data"
		expectedConfig.Port = 9000
		expectedConfig.Bind = "0.0.0.0"
		expectedConfig.Security.APIKey = "test-api-key"
		expectedConfig.Logging = Logging{Level: "debug", Format: "json"}
		expectedConfig.Coder.ContextWindowSize = 8

		err = SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("missing sections keep defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "partial.yaml")
		err := os.WriteFile(configPath, []byte("port: 9100\ncoder:\n  alphabet_size: 512\n"), 0600)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 9100, loadedConfig.Port)
		assert.Equal(t, 512, loadedConfig.Coder.AlphabetSize)
		assert.Equal(t, 16, loadedConfig.Coder.ContextWindowSize)
		assert.Equal(t, "info", loadedConfig.Logging.Level)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "biocoder_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "invalid.yaml")
		err = os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "biocoder_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	config := DefaultConfig()

	err = SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "biocoder_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, config.DataDir)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "127.0.0.1", config.Bind)
	assert.Equal(t, "info", config.Logging.Level)

	assert.NotEqual(t, "auto", config.Security.APIKey)
	_, err = hex.DecodeString(config.Security.APIKey)
	assert.NoError(t, err)

	assert.True(t, ConfigExists(configPath))

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "from-env")
	t.Setenv(EnvDataDir, "/env/data")

	config := DefaultConfig()
	config.ApplyEnv()
	assert.Equal(t, "from-env", config.Security.APIKey)
	assert.Equal(t, "/env/data", config.DataDir)
	assert.Equal(t, filepath.Join("/env/data", "streams"), config.StorePath())
	assert.Equal(t, filepath.Join("/env/data", "logs", "cam.units"), config.UnitLogPath("cam"))
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv(EnvConfig, "")
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "biocoder")
	assert.Contains(t, path, "config.yaml")

	t.Setenv(EnvConfig, "/etc/biocoder.yaml")
	assert.Equal(t, "/etc/biocoder.yaml", GetDefaultConfigPath())
}

func TestConfigExists(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "biocoder_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	err = os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = "/test/data"
	config.Security.APIKey = "api-key-123"
	config.Logging.Level = "warn"
	config.Coder.RedundancyElimination = false

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "redundancy_elimination: false")

	var unmarshalled Config
	err = yaml.Unmarshal(data, &unmarshalled)
	require.NoError(t, err)

	assert.Equal(t, config, &unmarshalled)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	invalidPath := "/invalid/path/that/cannot/be/created/config.yaml"

	err := SaveConfig(config, invalidPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
