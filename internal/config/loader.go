// Package config loads the agent configuration from a YAML file, the
// environment and command-line overrides, and reloads it when the file
// changes.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pkgconfig "github.com/DasSecurity-HatLab/roundworm/pkg/config"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"gopkg.in/yaml.v3"
)

// Override mutates a freshly loaded configuration. Command-line flags are
// applied this way so that they survive hot reloads.
type Override func(*models.Config)

// Loader handles configuration file loading and parsing
type Loader struct {
	configPath string
	lastHash   string
	env        *pkgconfig.EnvLoader
	overrides  []Override
}

// NewLoader creates a new configuration loader. An empty path means the
// configuration comes from defaults, environment and overrides only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		env:        pkgconfig.NewEnvLoader(pkgconfig.DefaultEnvPrefix),
	}
}

// AddOverride registers a function applied after the file and environment.
func (l *Loader) AddOverride(o Override) {
	l.overrides = append(l.overrides, o)
}

// Load builds the configuration: defaults, then the file, then the
// environment, then overrides. The result is validated.
func (l *Loader) Load() (*models.Config, error) {
	config := pkgconfig.Default()

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file does not exist: %s", l.configPath)
		}

		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}

		if len(data) == 0 {
			return nil, fmt.Errorf("configuration file is empty: %s", l.configPath)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file: %w", err)
		}

		hash, _ := l.calculateHash()
		l.lastHash = hash
	}

	if err := l.env.LoadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	for _, o := range l.overrides {
		o(config)
	}

	if err := pkgconfig.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// HasChanged checks if the configuration file has changed since last load
func (l *Loader) HasChanged() (bool, error) {
	currentHash, err := l.calculateHash()
	if err != nil {
		return false, err
	}

	if l.lastHash == "" {
		l.lastHash = currentHash
		return false, nil
	}

	changed := currentHash != l.lastHash
	if changed {
		l.lastHash = currentHash
	}

	return changed, nil
}

// GetConfigPath returns the configuration file path
func (l *Loader) GetConfigPath() string {
	return l.configPath
}

// GetConfigDir returns the directory containing the configuration file
func (l *Loader) GetConfigDir() string {
	return filepath.Dir(l.configPath)
}

func (l *Loader) calculateHash() (string, error) {
	file, err := os.Open(l.configPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
