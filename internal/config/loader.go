package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"portal/pkg/logging"
)

const configFileName = "config.yaml"

// GetDefaultConfigPath returns ~/.config/portal.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir), nil
}

// LoadConfig loads config.yaml from configPath. A missing file yields the
// default configuration.
func LoadConfig(configPath string) (PortalConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return PortalConfig{}, NewConfigurationError(configFilePath, "io", "failed to read configuration file", err.Error())
	}

	rendered, err := render(configFileName, data)
	if err != nil {
		return PortalConfig{}, NewConfigurationErrorWithSuggestions(configFilePath, "template", "failed to render configuration template", err.Error(),
			[]string{"Check the {{ ... }} expressions in config.yaml", "Quote values that contain literal braces"})
	}

	if err := yaml.Unmarshal(rendered, &config); err != nil {
		return PortalConfig{}, NewConfigurationErrorWithSuggestions(configFilePath, "parse", "invalid YAML", err.Error(),
			[]string{"Check indentation and key names in config.yaml"})
	}
	applyDefaults(&config)

	if err := Validate(config); err != nil {
		var ce ConfigurationError
		if errors.As(err, &ce) {
			ce.FilePath = configFilePath
			ce.FileName = filepath.Base(configFilePath)
			return PortalConfig{}, ce
		}
		return PortalConfig{}, err
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// render executes data as a text/template with the sprig function map.
func render(name string, data []byte) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
