// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Twitch   TwitchConfig   `mapstructure:"twitch"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Database DatabaseConfig `mapstructure:"database"`
	Games    GamesConfig    `mapstructure:"games"`
	Sfx      SfxConfig      `mapstructure:"sfx"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// TwitchConfig holds the IRC credentials for the chat connection.
type TwitchConfig struct {
	BotUsername string `mapstructure:"bot_username"`
	OAuthToken  string `mapstructure:"oauth_token"`
}

// ChannelConfig holds per-channel bot settings.
type ChannelConfig struct {
	Name          string   `mapstructure:"name"`
	Prefix        string   `mapstructure:"prefix"`
	CoinName      string   `mapstructure:"coin_name"`
	StartingCoins int64    `mapstructure:"starting_coins"`
	Admins        []string `mapstructure:"admins"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// GamesConfig holds game cooldown settings. Payout configuration lives in
// the slots/roll/rpg tables and is edited through the admin surface.
type GamesConfig struct {
	GambleCooldownSeconds int `mapstructure:"gamble_cooldown_seconds"`
	SlotsCooldownSeconds  int `mapstructure:"slots_cooldown_seconds"`
	RpgCooldownSeconds    int `mapstructure:"rpg_cooldown_seconds"`
}

// SfxConfig holds the playback pool and asset store settings.
type SfxConfig struct {
	AssetDir      string `mapstructure:"asset_dir"`
	Channels      int    `mapstructure:"channels"`
	DefaultVolume int    `mapstructure:"default_volume"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. TWITCH_OAUTH_TOKEN, DATABASE_HOST, CHANNEL_NAME.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("channel.prefix", "!")
	v.SetDefault("channel.coin_name", "coins")
	v.SetDefault("channel.starting_coins", 100)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chatbot")
	v.SetDefault("database.name", "chatbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("games.gamble_cooldown_seconds", 3)
	v.SetDefault("games.slots_cooldown_seconds", 5)
	v.SetDefault("games.rpg_cooldown_seconds", 60)

	v.SetDefault("sfx.asset_dir", "data/sfx")
	v.SetDefault("sfx.channels", 4)
	v.SetDefault("sfx.default_volume", 100)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9105")
}

// IsAdmin checks if a username is in the admin list.
func (c *Config) IsAdmin(username string) bool {
	for _, name := range c.Channel.Admins {
		if strings.EqualFold(name, username) {
			return true
		}
	}
	return false
}
