package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File представляет структуру файла конфигурации (YAML или TOML)
type File struct {
	APIURL       string        `yaml:"apiUrl,omitempty" toml:"apiUrl"`
	PublicURL    string        `yaml:"publicUrl,omitempty" toml:"publicUrl"`
	Addr         string        `yaml:"addr,omitempty" toml:"addr"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty" toml:"pollInterval"`
	TokenRefresh time.Duration `yaml:"tokenRefresh,omitempty" toml:"tokenRefresh"`
	Storage      string        `yaml:"storage,omitempty" toml:"storage"`
	SQLitePath   string        `yaml:"sqlitePath,omitempty" toml:"sqlitePath"`
	Window       *WindowConfig `yaml:"window,omitempty" toml:"window"`
	Sinks        *SinksConfig  `yaml:"sinks,omitempty" toml:"sinks"`
}

// LoadFile загружает конфигурацию; формат определяется по расширению
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *File) validate() error {
	if f.Sinks == nil {
		return nil
	}
	if f.Sinks.Webhook != nil && f.Sinks.Webhook.URL == "" {
		return fmt.Errorf("webhook sink has no url")
	}
	if f.Sinks.MQTT != nil && f.Sinks.MQTT.Broker == "" {
		return fmt.Errorf("mqtt sink has no broker")
	}
	if f.Sinks.Redis != nil && f.Sinks.Redis.Addr == "" {
		return fmt.Errorf("redis sink has no addr")
	}
	if f.Sinks.Journal != nil && f.Sinks.Journal.URL == "" {
		return fmt.Errorf("journal sink has no url")
	}
	return nil
}
