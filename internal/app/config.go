package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL         string `yaml:"base_url"`
	Language        string `yaml:"language"`
	DevFallback     bool   `yaml:"dev_fallback"`
	StorageRoot     string `yaml:"storage_root"`
	Store           string `yaml:"store"` // json|sqlite
	RecorderCommand string `yaml:"recorder_command"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8000",
		Language:        string(LangEnglish),
		DevFallback:     false,
		Store:           "json",
		RecorderCommand: "arecord -q -f cd -t wav",
	}
}

func DefaultConfigPath() string {
	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		return filepath.Join(base, "earthworm", "config.yaml")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".config", "earthworm", "config.yaml")
	}
	return ""
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	// Environment overrides.
	if v := os.Getenv("EARTHWORM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("EARTHWORM_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("EARTHWORM_DEV_FALLBACK"); v == "1" || v == "true" {
		cfg.DevFallback = true
	}
	if v := os.Getenv("EARTHWORM_STORAGE_ROOT"); v != "" {
		cfg.StorageRoot = v
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if _, ok := ParseLanguage(cfg.Language); !ok {
		cfg.Language = string(LangEnglish)
	}
	if cfg.Store == "" {
		cfg.Store = "json"
	}
	if cfg.RecorderCommand == "" {
		cfg.RecorderCommand = "arecord -q -f cd -t wav"
	}
	return cfg, nil
}
