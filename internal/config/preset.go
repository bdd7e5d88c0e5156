package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SessionPreset overrides the session defaults from a standalone YAML file.
type SessionPreset struct {
	Temperature   *float64 `yaml:"temperature"`
	ContextLength *int     `yaml:"context_length"`
	Instructions  *string  `yaml:"instructions"`
}

// ReadSessionPreset reads a preset file.
func ReadSessionPreset(path string) (SessionPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionPreset{}, err
	}
	var preset SessionPreset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return SessionPreset{}, fmt.Errorf("parse session preset %s: %w", path, err)
	}
	return preset, nil
}

func applyPreset(cfg *Config) error {
	if cfg.Session.PresetPath == "" {
		return nil
	}
	preset, err := ReadSessionPreset(cfg.Session.PresetPath)
	if err != nil {
		return err
	}
	if preset.Temperature != nil {
		cfg.Session.Temperature = *preset.Temperature
	}
	if preset.ContextLength != nil {
		cfg.Session.ContextLength = *preset.ContextLength
	}
	if preset.Instructions != nil {
		cfg.Session.Instructions = *preset.Instructions
	}
	return nil
}
