package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "tgremind/pkg/logx"
)

var ErrMissingToken = errors.New("telegram token required (set API_TOKEN or telegram.token)")

// Config is the on-disk configuration. Every field is optional in the file;
// Default() supplies the values used when it is omitted, and environment
// variables are applied on top (see ApplyEnv).
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Timezone  string          `json:"timezone,omitempty"`
	DryRun    bool            `json:"dry_run,omitempty"`
	Silent    bool            `json:"silent,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`

	// ShutdownTimeout bounds the final "notifications are off" broadcast.
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

type TelegramConfig struct {
	Token string  `json:"token"`
	Chats []int64 `json:"chats,omitempty"`
	// ParseMode is passed to sendMessage as-is ("", "HTML", "MarkdownV2").
	ParseMode string `json:"parse_mode,omitempty"`
	// Timeout is the HTTP client timeout for Bot API calls (Go duration string).
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RemindersConfig tunes trigger evaluation.
//
// All durations are Go duration strings (e.g. "5m", "24h").
type RemindersConfig struct {
	// Lead is how long before the event the first notification fires.
	Lead string `json:"lead,omitempty"`
	// AnchorOffset bounds how long a daily occurrence ("9am", "today 18:00")
	// stays on its day after it passed; older ones roll to the next day.
	AnchorOffset string `json:"anchor_offset,omitempty"`
	// MaxCatchUp caps how far back a cycle re-covers after failed cycles.
	MaxCatchUp     string `json:"max_catch_up,omitempty"`
	SendRatePerSec int    `json:"send_rate_per_sec,omitempty"`
}

func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{Timeout: "30s"},
		Timezone: "UTC",
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Telegram: LoggingTelegram{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
		Reminders: RemindersConfig{
			Lead:           "5m",
			AnchorOffset:   "24h",
			MaxCatchUp:     "1h",
			SendRatePerSec: 20,
		},
		ShutdownTimeout: "10s",
	}
}

// Settings is a validated, typed view of Config.
type Settings struct {
	Token     string
	Chats     []int64
	ParseMode string
	Timeout   time.Duration

	Location *time.Location
	DryRun   bool
	Silent   bool

	Lead           time.Duration
	AnchorOffset   time.Duration
	MaxCatchUp     time.Duration
	SendRatePerSec int

	ShutdownTimeout time.Duration
	Logging         logx.Config
}

// Resolve validates the config and converts it into Settings.
func (c *Config) Resolve() (Settings, error) {
	var s Settings
	s.Token = strings.TrimSpace(c.Telegram.Token)
	if s.Token == "" {
		return s, ErrMissingToken
	}
	s.Chats = append([]int64(nil), c.Telegram.Chats...)
	s.ParseMode = strings.TrimSpace(c.Telegram.ParseMode)

	var err error
	if s.Timeout, err = ParseDurationOrDefault("telegram.timeout", c.Telegram.Timeout, 30*time.Second); err != nil {
		return s, err
	}

	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return s, fmt.Errorf("timezone: %w", err)
	}
	s.DryRun = c.DryRun
	s.Silent = c.Silent

	s.Lead = 5 * time.Minute
	if strings.TrimSpace(c.Reminders.Lead) != "" {
		if s.Lead, err = ParseDurationField("reminders.lead", c.Reminders.Lead); err != nil {
			return s, err
		}
		if s.Lead <= 0 {
			return s, fmt.Errorf("reminders.lead must be > 0")
		}
	}
	// AnchorOffset may legitimately be "0s".
	if s.AnchorOffset, err = ParseDurationField("reminders.anchor_offset", c.Reminders.AnchorOffset); err != nil {
		return s, err
	}
	if s.MaxCatchUp, err = ParseDurationOrDefault("reminders.max_catch_up", c.Reminders.MaxCatchUp, time.Hour); err != nil {
		return s, err
	}
	s.SendRatePerSec = c.Reminders.SendRatePerSec
	if s.SendRatePerSec < 0 {
		return s, fmt.Errorf("reminders.send_rate_per_sec must be >= 0")
	}
	if s.ShutdownTimeout, err = ParseDurationOrDefault("shutdown_timeout", c.ShutdownTimeout, 10*time.Second); err != nil {
		return s, err
	}

	s.Logging = logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Logging.Telegram.Enabled,
			ChatID:     c.Logging.Telegram.ChatID,
			MinLevel:   c.Logging.Telegram.MinLevel,
			RatePerSec: c.Logging.Telegram.RatePerSec,
		},
	}
	return s, nil
}
