package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/schovi/screenrec/internal/session"
)

const (
	AppName       = "screenrec"
	RecordingsDir = "ScreenRecords"
)

type Config struct {
	RecordingsDir     string
	Quality           string
	Audio             string
	CountdownTicks    int
	CountdownInterval time.Duration
	FinalizeTimeout   time.Duration
	FFmpegPath        string
	Display           string
	SocketDir         string
	LogLevel          string
}

type fileConfig struct {
	RecordingsDir     string `toml:"recordings_dir"`
	Quality           string `toml:"quality"`
	Audio             string `toml:"audio"`
	Countdown         *int   `toml:"countdown"`
	CountdownInterval string `toml:"countdown_interval"`
	FinalizeTimeout   string `toml:"finalize_timeout"`
	FFmpegPath        string `toml:"ffmpeg_path"`
	Display           string `toml:"display"`
	SocketDir         string `toml:"socket_dir"`
	LogLevel          string `toml:"log_level"`
}

func Default() *Config {
	return &Config{
		RecordingsDir:     defaultRecordingsDir(),
		Quality:           "720p",
		Audio:             string(session.AudioNone),
		CountdownTicks:    session.DefaultCountdownTicks,
		CountdownInterval: session.DefaultCountdownInterval,
		FinalizeTimeout:   session.DefaultFinalizeTimeout,
		FFmpegPath:        "ffmpeg",
		SocketDir:         defaultSocketDir(),
		LogLevel:          "info",
	}
}

// Load reads the config file if one exists, then applies SCREENREC_*
// environment overrides.
func Load() (*Config, error) {
	return LoadFrom(FilePath())
}

// LoadFrom is Load with an explicit file path. An empty or missing path
// yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			var fc fileConfig
			if _, err := toml.DecodeFile(path, &fc); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := cfg.merge(fc); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(fc fileConfig) error {
	if fc.RecordingsDir != "" {
		c.RecordingsDir = expandTilde(fc.RecordingsDir)
	}
	if fc.Quality != "" {
		c.Quality = fc.Quality
	}
	if fc.Audio != "" {
		c.Audio = fc.Audio
	}
	if fc.Countdown != nil {
		c.CountdownTicks = *fc.Countdown
	}
	if fc.CountdownInterval != "" {
		d, err := time.ParseDuration(fc.CountdownInterval)
		if err != nil {
			return fmt.Errorf("countdown_interval: %w", err)
		}
		c.CountdownInterval = d
	}
	if fc.FinalizeTimeout != "" {
		d, err := time.ParseDuration(fc.FinalizeTimeout)
		if err != nil {
			return fmt.Errorf("finalize_timeout: %w", err)
		}
		c.FinalizeTimeout = d
	}
	if fc.FFmpegPath != "" {
		c.FFmpegPath = expandTilde(fc.FFmpegPath)
	}
	if fc.Display != "" {
		c.Display = fc.Display
	}
	if fc.SocketDir != "" {
		c.SocketDir = expandTilde(fc.SocketDir)
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SCREENREC_RECORDINGS_DIR"); v != "" {
		cfg.RecordingsDir = expandTilde(v)
	}
	if v := os.Getenv("SCREENREC_QUALITY"); v != "" {
		cfg.Quality = v
	}
	if v := os.Getenv("SCREENREC_AUDIO"); v != "" {
		cfg.Audio = v
	}
	if v := os.Getenv("SCREENREC_COUNTDOWN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCREENREC_COUNTDOWN: %w", err)
		}
		cfg.CountdownTicks = n
	}
	if v := os.Getenv("SCREENREC_FFMPEG"); v != "" {
		cfg.FFmpegPath = expandTilde(v)
	}
	if v := os.Getenv("SCREENREC_DISPLAY"); v != "" {
		cfg.Display = v
	}
	if v := os.Getenv("SCREENREC_SOCKET_DIR"); v != "" {
		cfg.SocketDir = expandTilde(v)
	}
	if v := os.Getenv("SCREENREC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := session.ProfileByName(c.Quality); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if _, err := session.ParseAudioSource(c.Audio); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if c.CountdownTicks < 0 {
		return fmt.Errorf("countdown must not be negative")
	}
	if c.CountdownInterval <= 0 {
		return fmt.Errorf("countdown_interval must be positive")
	}
	if c.FinalizeTimeout <= 0 {
		return fmt.Errorf("finalize_timeout must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q (want debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// Video resolves the configured quality preset. Validate has already
// checked it.
func (c *Config) Video() session.VideoProfile {
	p, _ := session.ProfileByName(c.Quality)
	return p
}

func (c *Config) AudioSource() session.AudioSource {
	a, _ := session.ParseAudioSource(c.Audio)
	return a
}

// FilePath returns $XDG_CONFIG_HOME/screenrec/config.toml, falling back
// to ~/.config.
func FilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, AppName)
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", AppName)
	} else {
		return ""
	}
	return filepath.Join(configDir, "config.toml")
}

func defaultRecordingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", RecordingsDir)
	}
	return filepath.Join(home, "Videos", RecordingsDir)
}

func defaultSocketDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "."+AppName)
	}
	return filepath.Join(home, "."+AppName)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
