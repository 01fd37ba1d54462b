// Package config loads runtime settings from a YAML file and the environment.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Inventory InventoryConfig `yaml:"inventory"`
	Reminder  ReminderConfig  `yaml:"reminder"`
	Lookup    LookupConfig    `yaml:"lookup"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"                env:"SERVER_ADDR"                env-default:":8080"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT" env-default:"10s"`
	ReadTimeout       time.Duration `yaml:"read_timeout"        env:"SERVER_READ_TIMEOUT"        env-default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout"       env:"SERVER_WRITE_TIMEOUT"       env-default:"60s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"        env:"SERVER_IDLE_TIMEOUT"        env-default:"120s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"    env:"SERVER_SHUTDOWN_TIMEOUT"    env-default:"5s"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"eatmefirst.sqlite3"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	AdminUser string        `yaml:"admin_user" env:"AUTH_ADMIN_USER" env-default:"Admin"`
	TokenTTL  time.Duration `yaml:"token_ttl"  env:"AUTH_TOKEN_TTL"  env-default:"24h"`
}

// InventoryConfig holds expiry settings shared by stats, lists and reminders.
type InventoryConfig struct {
	ExpiringSoonDays int `yaml:"expiring_soon_days" env:"EXPIRING_SOON_DAYS" env-default:"3"`
}

// ReminderConfig holds daily reminder settings. Notifier "none" turns the
// scheduler off.
type ReminderConfig struct {
	Hour     int    `yaml:"hour"     env:"REMINDER_HOUR"     env-default:"9"`
	Notifier string `yaml:"notifier" env:"REMINDER_NOTIFIER" env-default:"log"`
}

// LookupConfig holds barcode lookup settings. Defaults fill zero values, so
// the switch is an opt-out.
type LookupConfig struct {
	Disabled bool          `yaml:"disabled" env:"LOOKUP_DISABLED"`
	BaseURL  string        `yaml:"base_url" env:"LOOKUP_BASE_URL" env-default:"https://world.openfoodfacts.org/api/v0/product"`
	Timeout  time.Duration `yaml:"timeout"  env:"LOOKUP_TIMEOUT"  env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file"   env:"LOG_FILE"`
}
