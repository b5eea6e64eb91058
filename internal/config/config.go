package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BotToken string   `json:"bot_token" envconfig:"BOT_TOKEN"`
	Admins   []int64  `json:"admins,omitempty" envconfig:"ADMINS"`
	Channels []string `json:"channels,omitempty" envconfig:"CHANNELS"`
	TmpDir   string   `json:"tmp_dir" envconfig:"TMP_DIR"`

	// ffmpeg binary and the mp3 bitrate used for trims and normalization.
	FFmpegPath string `json:"ffmpeg_path,omitempty" envconfig:"FFMPEG_PATH"`
	Bitrate    string `json:"bitrate,omitempty" envconfig:"MP3_BITRATE"`

	// Pause between two broadcast sends and the number of sending workers.
	BroadcastInterval time.Duration `json:"-" envconfig:"BROADCAST_INTERVAL"`
	BroadcastWorkers  int           `json:"broadcast_workers,omitempty" envconfig:"BROADCAST_WORKERS"`

	// Max updates handled at the same time.
	Concurrency int `json:"concurrency,omitempty" envconfig:"CONCURRENCY"`

	Debug    bool   `json:"debug,omitempty" envconfig:"DEBUG"`
	LogLevel string `json:"log_level,omitempty" envconfig:"LOG_LEVEL"`
}

const (
	DefaultFFmpegPath        = "ffmpeg"
	DefaultBitrate           = "192k"
	DefaultBroadcastInterval = 50 * time.Millisecond
	DefaultConcurrency       = 10
)

func DefaultTmpDir() string {
	return "/tmp/music_bot"
}

func DefaultConfigPath() string {
	if v := os.Getenv("MEB_CONFIG"); v != "" {
		return v
	}
	return "/etc/mp3-editor-bot/config.json"
}

// Load builds the config from, in increasing priority: the JSON file at path,
// a .env file in the working directory, and the process environment.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config json: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.applyDefaults()

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("missing bot_token (set in %s or BOT_TOKEN env)", path)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TmpDir == "" {
		c.TmpDir = DefaultTmpDir()
	}
	c.TmpDir = filepath.Clean(c.TmpDir)
	if c.FFmpegPath == "" {
		c.FFmpegPath = DefaultFFmpegPath
	}
	if c.Bitrate == "" {
		c.Bitrate = DefaultBitrate
	}
	if c.BroadcastInterval <= 0 {
		c.BroadcastInterval = DefaultBroadcastInterval
	}
	if c.BroadcastWorkers <= 0 {
		c.BroadcastWorkers = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	c.Channels = cleanChannels(c.Channels)
}

func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// DBPath is the sqlite file kept next to the working files.
func (c Config) DBPath() string {
	return filepath.Join(c.TmpDir, "bot_db.sqlite3")
}

func cleanChannels(in []string) []string {
	var out []string
	for _, ch := range in {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		out = append(out, ch)
	}
	return out
}
