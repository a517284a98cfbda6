package config

import (
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"
)

type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageSQLite StorageType = "sqlite"
)

const (
	DefaultPollInterval   = 15 * time.Second
	DefaultTokenRefresh   = 14*time.Minute + 30*time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultWindowPastDays = 500
	DefaultWindowNextDays = 365
)

// WindowConfig задаёт окно дат по умолчанию относительно сегодняшнего дня
type WindowConfig struct {
	PastDays int `yaml:"pastDays,omitempty" toml:"pastDays"`
	NextDays int `yaml:"nextDays,omitempty" toml:"nextDays"`
}

// GetPastDays возвращает глубину окна в прошлое (default: 500)
func (w *WindowConfig) GetPastDays() int {
	if w == nil || w.PastDays <= 0 {
		return DefaultWindowPastDays
	}
	return w.PastDays
}

// GetNextDays возвращает глубину окна в будущее (default: 365)
func (w *WindowConfig) GetNextDays() int {
	if w == nil || w.NextDays <= 0 {
		return DefaultWindowNextDays
	}
	return w.NextDays
}

// Range returns the default window as [midnight-past, midnight+next] in loc.
func (w *WindowConfig) Range(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -w.GetPastDays()), midnight.AddDate(0, 0, w.GetNextDays())
}

// WebhookConfig описывает HTTP получателя оповещений
type WebhookConfig struct {
	URL     string        `yaml:"url" toml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}

// GetTimeout возвращает таймаут запроса с default (10s)
func (w *WebhookConfig) GetTimeout() time.Duration {
	if w == nil || w.Timeout <= 0 {
		return 10 * time.Second
	}
	return w.Timeout
}

// MQTTConfig описывает брокер для ретрансляции оповещений
type MQTTConfig struct {
	Broker   string `yaml:"broker" toml:"broker"`
	ClientID string `yaml:"clientId,omitempty" toml:"clientId"`
	Username string `yaml:"username,omitempty" toml:"username"`
	Password string `yaml:"password,omitempty" toml:"password"`
	Topic    string `yaml:"topic,omitempty" toml:"topic"`
	QoS      byte   `yaml:"qos,omitempty" toml:"qos"`
}

// GetClientID возвращает client id с default
func (m *MQTTConfig) GetClientID() string {
	if m == nil || m.ClientID == "" {
		return "precog-panel"
	}
	return m.ClientID
}

// GetTopic возвращает топик с default
func (m *MQTTConfig) GetTopic() string {
	if m == nil || m.Topic == "" {
		return "precog/alerts"
	}
	return m.Topic
}

// RedisConfig описывает Redis stream для оповещений
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password,omitempty" toml:"password"`
	DB       int    `yaml:"db,omitempty" toml:"db"`
	Stream   string `yaml:"stream,omitempty" toml:"stream"`
}

// GetStream возвращает имя stream с default
func (r *RedisConfig) GetStream() string {
	if r == nil || r.Stream == "" {
		return "precog:alerts"
	}
	return r.Stream
}

// JournalConfig описывает журнал оповещений в ClickHouse
// URL формат: clickhouse://host:port/database?table=xxx
type JournalConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// SinksConfig группирует внешних получателей оповещений (все опциональны)
type SinksConfig struct {
	Webhook *WebhookConfig `yaml:"webhook,omitempty" toml:"webhook"`
	MQTT    *MQTTConfig    `yaml:"mqtt,omitempty" toml:"mqtt"`
	Redis   *RedisConfig   `yaml:"redis,omitempty" toml:"redis"`
	Journal *JournalConfig `yaml:"journal,omitempty" toml:"journal"`
}

type Config struct {
	// Настройки окна дат
	Window *WindowConfig

	// Внешние получатели оповещений
	Sinks *SinksConfig

	APIURL         string // базовый URL PRECOG API (без /api)
	PublicURL      string // адрес панели для ссылок в оповещениях
	Addr           string // адрес для прослушивания (формат: :port или host:port)
	PollInterval   time.Duration
	TokenRefresh   time.Duration
	RequestTimeout time.Duration
	Storage        StorageType
	SQLitePath     string
	LogFormat      string
	LogLevel       string
	ConfigFile     string // путь к YAML/TOML конфигу
	UserName       string // учётные данные для входа при старте (опционально)
	Password       string
}

func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}
	return cfg
}

// ParseArgs разбирает флаги и накладывает на них файл конфигурации.
// Явно заданные флаги имеют приоритет над файлом.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("precog-panel", flag.ContinueOnError)

	fs.StringVar(&cfg.APIURL, "api-url", "http://localhost:5000", "PRECOG API base URL")
	fs.StringVar(&cfg.PublicURL, "public-url", "http://localhost:8282/", "Panel URL used in alert links")
	fs.StringVar(&cfg.Addr, "addr", ":8282", "Listen address (e.g. :8282 or 127.0.0.1:8282)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", DefaultPollInterval, "Device polling interval")
	fs.DurationVar(&cfg.TokenRefresh, "token-refresh", DefaultTokenRefresh, "HMAC key refresh interval")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", DefaultRequestTimeout, "PRECOG API request timeout")

	var storageStr string
	fs.StringVar(&storageStr, "storage", "memory", "Preference storage: memory or sqlite")

	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "./precog-panel.db", "SQLite database path")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML or TOML configuration file")
	fs.StringVar(&cfg.UserName, "user", "", "User name to log in with at startup")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Password = os.Getenv("PRECOG_PASSWORD")

	cfg.Storage = StorageType(storageStr)
	if cfg.Storage != StorageMemory && cfg.Storage != StorageSQLite {
		cfg.Storage = StorageMemory
	}

	if cfg.ConfigFile == "" {
		return cfg, nil
	}

	file, err := LoadFile(cfg.ConfigFile)
	if err != nil {
		slog.Error("Failed to load config file", "path", cfg.ConfigFile, "error", err)
		return cfg, nil
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg.apply(file, set)

	return cfg, nil
}

// apply переносит значения из файла для флагов, не заданных явно
func (c *Config) apply(f *File, set map[string]bool) {
	c.Window = f.Window
	c.Sinks = f.Sinks

	if f.APIURL != "" && !set["api-url"] {
		c.APIURL = f.APIURL
	}
	if f.PublicURL != "" && !set["public-url"] {
		c.PublicURL = f.PublicURL
	}
	if f.Addr != "" && !set["addr"] {
		c.Addr = f.Addr
	}
	if f.PollInterval > 0 && !set["poll-interval"] {
		c.PollInterval = f.PollInterval
	}
	if f.TokenRefresh > 0 && !set["token-refresh"] {
		c.TokenRefresh = f.TokenRefresh
	}
	if f.Storage != "" && !set["storage"] {
		if st := StorageType(f.Storage); st == StorageMemory || st == StorageSQLite {
			c.Storage = st
		}
	}
	if f.SQLitePath != "" && !set["sqlite-path"] {
		c.SQLitePath = f.SQLitePath
	}
}

// ParseLogLevel converts string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
