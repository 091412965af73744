// Persisted YAML config file handling.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the persisted YAML document at Path.
type FileConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	CABundle string `yaml:"ca_bundle,omitempty"`
	Model    string `yaml:"model"`
}

// Complete reports whether the persisted config has everything chat needs.
func (f *FileConfig) Complete() bool {
	return f != nil && f.BaseURL != "" && f.APIKey != "" && f.Model != ""
}

// Path returns the config file location, honouring XDG_CONFIG_HOME.
func Path() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "saga-code", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "saga-code", "config.yaml"), nil
}

// LoadFile reads the persisted config. A missing file yields (nil, nil).
func LoadFile() (*FileConfig, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var file FileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &file, nil
}

// SaveFile writes the persisted config, creating the directory as needed.
// The file holds an access token, so it is written owner-only.
func SaveFile(file *FileConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
