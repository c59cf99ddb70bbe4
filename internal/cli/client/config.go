package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	envAPIToken = "NEWSWEAVE_API_TOKEN"
	envAPIURL   = "NEWSWEAVE_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig holds the daemon credentials stored in config.json
type GlobalConfig struct {
	APIToken string `json:"api_token"`
	APIURL   string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "newsweave"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads config.json. A missing file yields a nil config and
// no error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}

	return nil
}

// CredentialSource represents where credentials came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// ResolveCredentials picks the token and URL, each independently, from flag,
// then environment, then global config. The reported source is where the
// token came from. A missing URL falls back to the local default.
func ResolveCredentials(flagToken, flagURL string) (CredentialSource, string, string, error) {
	source := SourceNone
	token, url := flagToken, flagURL
	if token != "" {
		source = SourceFlag
	}

	if token == "" {
		if token = os.Getenv(envAPIToken); token != "" {
			source = SourceEnv
		}
	}
	if url == "" {
		url = os.Getenv(envAPIURL)
	}

	if token == "" || url == "" {
		config, err := LoadGlobalConfig()
		if err != nil {
			return SourceNone, "", "", err
		}
		if config != nil {
			if token == "" && config.APIToken != "" {
				token = config.APIToken
				source = SourceGlobalConfig
			}
			if url == "" {
				url = config.APIURL
			}
		}
	}

	if url == "" {
		url = defaultAPIURL
	}
	return source, token, url, nil
}
