package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dapcheck/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/dapcheck"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults and
// validates the result.
func LoadConfig(configPath string) (DapcheckConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return DapcheckConfig{}, NewConfigurationError(configFilePath, "io", "cannot read configuration", err.Error())
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		// config malformed
		cerr := NewConfigurationError(configFilePath, "parse", "malformed configuration", err.Error())
		cerr.Suggestions = []string{"Check the yaml syntax", "Durations use Go syntax, for example 15s or 500ms"}
		return DapcheckConfig{}, cerr
	}

	if verrs := Validate(config); verrs.HasErrors() {
		cerr := NewConfigurationError(configFilePath, "validation", "invalid configuration", verrs.Error())
		return DapcheckConfig{}, cerr
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}
