package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	PublicURL  string `mapstructure:"public_url"`
	Secret     string `mapstructure:"secret"`
	ReadLimit  int64  `mapstructure:"read_limit"`

	CardSize       int           `mapstructure:"card_size"`
	BingoThreshold int           `mapstructure:"bingo_threshold"`
	Preview        time.Duration `mapstructure:"preview"`
	MarkLimit      int           `mapstructure:"mark_limit"`
	MarkInterval   time.Duration `mapstructure:"mark_interval"`

	SessionDB    string `mapstructure:"session_db"`
	PlaylistFile string `mapstructure:"playlist_file"`

	SpotifyClientID     string `mapstructure:"spotify_client_id"`
	SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("card_size", 25)
	v.SetDefault("bingo_threshold", 20)
	v.SetDefault("preview", "30s")
	v.SetDefault("mark_limit", 10)
	v.SetDefault("mark_interval", "10s")
	v.SetDefault("spotify_client_id", os.Getenv("SPOTIFY_CLIENT_ID"))
	v.SetDefault("spotify_client_secret", os.Getenv("SPOTIFY_CLIENT_SECRET"))

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.CardSize != 20 && cfg.CardSize != 25 {
		return nil, fmt.Errorf("card_size must be 20 or 25, got %d", cfg.CardSize)
	}
	if cfg.BingoThreshold > cfg.CardSize {
		return nil, fmt.Errorf("bingo_threshold %d exceeds card_size %d", cfg.BingoThreshold, cfg.CardSize)
	}
	return &cfg, nil
}

// JoinURL builds the link players open to join a session.
func (c *Config) JoinURL(sessionID string) string {
	return strings.TrimRight(c.PublicURL, "/") + "?sid=" + sessionID
}
