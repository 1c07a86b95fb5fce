package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dooshek/multiboxer/internal/fileops"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/shortcut"
	"github.com/dooshek/multiboxer/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	configFilename = "multiboxer.yaml"
)

// Path resolves the configuration file location. An empty override means
// ~/.config/multiboxer/multiboxer.yaml.
func Path(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return "", fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return filepath.Join(fileOps.GetConfigDir(), configFilename), nil
}

func opsFor(path string) (*fileops.DefaultFileOps, string) {
	return fileops.NewFileOps(filepath.Dir(path)), filepath.Base(path)
}

// LoadConfig reads the configuration at path. Missing fields keep their
// defaults. On first run the defaults are written out.
func LoadConfig(path string) (*types.Config, error) {
	return load(path, true)
}

func load(path string, createDefault bool) (*types.Config, error) {
	fileOps, name := opsFor(path)
	if err := fileOps.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := fileOps.LoadConfig(name)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) && createDefault {
			config := types.DefaultConfig()
			if err := SaveConfig(path, config); err != nil {
				logger.Warnf("Failed to write default config: %v", err)
			} else {
				logger.Infof("Created default config at %s", path)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*types.Config, error) {
	config := types.DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for _, w := range Validate(config) {
		logger.Warnf("Config: %s", w)
	}
	return config, nil
}

// Validate resets unusable values to their defaults and describes each
// correction.
func Validate(config *types.Config) []string {
	defaults := types.DefaultConfig()
	var warnings []string

	if strings.TrimSpace(config.Pattern) == "" {
		warnings = append(warnings, fmt.Sprintf("empty window pattern, using %q", defaults.Pattern))
		config.Pattern = defaults.Pattern
	}
	if !config.BroadcastMode.Valid() {
		warnings = append(warnings, fmt.Sprintf("unknown broadcast_mode %q, using %s", config.BroadcastMode, defaults.BroadcastMode))
		config.BroadcastMode = defaults.BroadcastMode
	}
	switch config.Injector {
	case types.InjectorXdotool, types.InjectorRobotgo:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown injector %q, using %s", config.Injector, defaults.Injector))
		config.Injector = defaults.Injector
	}
	switch config.InputSource {
	case types.SourceX11, types.SourceHook, types.SourceEvdev:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown input_source %q, using %s", config.InputSource, defaults.InputSource))
		config.InputSource = defaults.InputSource
	}
	for _, k := range config.InhibitKeys {
		if strings.Contains(k, "+") && len(k) > 1 && shortcut.Normalize(k) == "" {
			warnings = append(warnings, fmt.Sprintf("inhibit key %q is not a valid combo and will never match", k))
		}
	}
	return warnings
}

// SaveConfig writes config to path as YAML.
func SaveConfig(path string, config *types.Config) error {
	fileOps, name := opsFor(path)
	if err := fileOps.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Marshal the config to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Save the config using fileOps
	if err := fileOps.SaveConfig(name, data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
