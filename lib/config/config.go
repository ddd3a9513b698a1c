// Package config loads the show runner configuration: compiled defaults,
// then an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"relayshow/lib/gpio"
)

const EnvConfig = "RELAYSHOW_CONFIG"

var Backends = []string{"mpg123", "beep", "mpd", "qlab", "none"}

type Config struct {
	Channels  int          `yaml:"channels"`
	Extension string       `yaml:"extension"`
	Clock     ClockConfig  `yaml:"clock"`
	Night     NightConfig  `yaml:"night"`
	Audio     AudioConfig  `yaml:"audio"`
	QLab      QLabConfig   `yaml:"qlab"`
	Outputs   Outputs      `yaml:"outputs"`
	Status    StatusConfig `yaml:"status"`
	Log       LogConfig    `yaml:"log"`
}

type ClockConfig struct {
	PollIntervalMs int `yaml:"pollIntervalMs"`
	StaleAfterMs   int `yaml:"staleAfterMs"`
}

func (c ClockConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c ClockConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMs) * time.Millisecond
}

// NightConfig holds the base hours of the night window and the day of the
// year (counted from January 1st) on which it is shortest.
type NightConfig struct {
	Evening         float64 `yaml:"evening"`
	Morning         float64 `yaml:"morning"`
	DayOffset       int     `yaml:"dayOffset"`
	PollIntervalSec int     `yaml:"pollIntervalSec"`
}

type AudioConfig struct {
	Backend  string       `yaml:"backend"`
	TimeFile string       `yaml:"timeFile"`
	Mpg123   Mpg123Config `yaml:"mpg123"`
	MPD      MPDConfig    `yaml:"mpd"`
}

type Mpg123Config struct {
	Binary string `yaml:"binary"`
}

type MPDConfig struct {
	Network string `yaml:"network"`
	Address string `yaml:"address"`
}

type QLabConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Workspace string `yaml:"workspace"`
	Passcode  string `yaml:"passcode"`
}

type Outputs struct {
	GPIO       GPIOConfig       `yaml:"gpio"`
	HIDRelay   HIDRelayConfig   `yaml:"hidrelay"`
	XTouch     XTouchConfig     `yaml:"xtouch"`
	StreamDeck StreamDeckConfig `yaml:"streamdeck"`
}

// GPIOConfig names pins as the host sees them (BCM "GPIO17" style).
// Address pins are listed low bit first.
type GPIOConfig struct {
	Enabled bool     `yaml:"enabled"`
	Data    []string `yaml:"data"`
	Address []string `yaml:"address"`
	Enable  string   `yaml:"enable"`
}

type HIDRelayConfig struct {
	Enabled bool `yaml:"enabled"`
	Relays  int  `yaml:"relays"`
}

type XTouchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type StreamDeckConfig struct {
	Enabled    bool `yaml:"enabled"`
	Brightness int  `yaml:"brightness"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMb  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Debug      bool   `yaml:"debug"`
}

// Load builds the configuration. path, if empty, falls back to
// RELAYSHOW_CONFIG; with neither set only defaults and environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Channels:  8,
		Extension: ".show",
		Clock: ClockConfig{
			PollIntervalMs: 10,
			StaleAfterMs:   600,
		},
		Night: NightConfig{
			Evening:         16.83,
			Morning:         7.74,
			DayOffset:       11,
			PollIntervalSec: 30,
		},
		Audio: AudioConfig{
			Backend:  "mpg123",
			TimeFile: "time.txt",
			Mpg123:   Mpg123Config{Binary: "mpg123"},
			MPD:      MPDConfig{Network: "tcp", Address: "localhost:6600"},
		},
		QLab: QLabConfig{
			Host: "localhost",
			Port: 53000,
		},
		Outputs: Outputs{
			GPIO: GPIOConfig{
				Data:    slices.Clone(gpio.DefaultData),
				Address: slices.Clone(gpio.DefaultAddress),
				Enable:  gpio.DefaultEnable,
			},
			HIDRelay:   HIDRelayConfig{Relays: 8},
			XTouch:     XTouchConfig{Port: "x-touch"},
			StreamDeck: StreamDeckConfig{Brightness: 60},
		},
		Log: LogConfig{
			File:       "log.txt",
			MaxSizeMb:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RELAYSHOW_CHANNELS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RELAYSHOW_CHANNELS: %w", err)
		}
		cfg.Channels = n
	}
	if v := os.Getenv("RELAYSHOW_TIME_FILE"); v != "" {
		cfg.Audio.TimeFile = v
	}
	if v := os.Getenv("RELAYSHOW_AUDIO"); v != "" {
		cfg.Audio.Backend = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Channels < 1 || c.Channels > 64 {
		return fmt.Errorf("channels %d outside [1, 64]", c.Channels)
	}
	if c.Clock.PollIntervalMs <= 0 || c.Clock.StaleAfterMs <= 0 {
		return fmt.Errorf("clock intervals must be positive, got poll=%dms stale=%dms", c.Clock.PollIntervalMs, c.Clock.StaleAfterMs)
	}
	if c.Night.PollIntervalSec <= 0 {
		return fmt.Errorf("night poll interval must be positive, got %ds", c.Night.PollIntervalSec)
	}
	if !slices.Contains(Backends, c.Audio.Backend) {
		return fmt.Errorf("invalid audio backend %q, must be one of: %v", c.Audio.Backend, Backends)
	}
	if c.Audio.Backend == "qlab" && c.QLab.Workspace == "" {
		return fmt.Errorf("qlab backend needs qlab.workspace")
	}
	if g := c.Outputs.GPIO; g.Enabled && (len(g.Data) != 8 || len(g.Address) != 3 || g.Enable == "") {
		return fmt.Errorf("gpio needs 8 data pins, 3 address pins and an enable pin, got %d, %d and %q", len(g.Data), len(g.Address), g.Enable)
	}
	if r := c.Outputs.HIDRelay.Relays; r < 1 || r > 8 {
		return fmt.Errorf("hidrelay relays %d outside [1, 8]", r)
	}
	return nil
}
