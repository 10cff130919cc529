package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required"`
	DeveloperID           string   `env:"DISCORD_OWNER_ID"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	LavalinkURL      string `env:"LAVALINK_URL" envDefault:"http://localhost:2333"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkNodeID   string `env:"LAVALINK_NODE_ID" envDefault:"main"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`
	StatusAddr  string `env:"STATUS_ADDR" envDefault:":8787"`

	NodeHealthInterval time.Duration `env:"NODE_HEALTH_INTERVAL" envDefault:"60s"`
	NodeMaxRetries     int           `env:"NODE_MAX_RETRIES" envDefault:"5"`
	ReaperInterval     time.Duration `env:"REAPER_INTERVAL" envDefault:"60s"`
	AdvanceDelay       time.Duration `env:"ADVANCE_DELAY" envDefault:"1s"`
	NowPlayingTTL      time.Duration `env:"NOW_PLAYING_TTL" envDefault:"30s"`
	CommandCooldown    time.Duration `env:"COMMAND_COOLDOWN" envDefault:"3s"`
}

// Load reads .env when present and parses the environment.
func Load() (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.NodeMaxRetries < 1 {
		return nil, fmt.Errorf("NODE_MAX_RETRIES must be at least 1, got %d", cfg.NodeMaxRetries)
	}
	return &cfg, nil
}

// IsDeveloper reports whether userID is the configured bot owner.
func IsDeveloper(cfg *Config, userID string) bool {
	return cfg != nil && cfg.DeveloperID != "" && userID == cfg.DeveloperID
}
