// Package config loads shadowplay settings from TOML or YAML.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mgpai22/shadowplay/internal/command"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/loop"
	"github.com/mgpai22/shadowplay/internal/storage"
	"github.com/mgpai22/shadowplay/internal/volume"
)

//go:embed sample_config.toml
var sampleConfig string

// Playback holds navigation and volume settings.
type Playback struct {
	LongSkipSeconds  float64 `toml:"long_skip_seconds" yaml:"long_skip_seconds"`
	ShortSkipSeconds float64 `toml:"short_skip_seconds" yaml:"short_skip_seconds"`
	VolumeStep       float64 `toml:"volume_step" yaml:"volume_step"`
	MaxAmplification float64 `toml:"max_amplification" yaml:"max_amplification"`
	Autoplay         bool    `toml:"autoplay" yaml:"autoplay"`
}

// Loop holds auto-loop timings in milliseconds.
type Loop struct {
	HitWindowMS      int `toml:"hit_window_ms" yaml:"hit_window_ms"`
	ReseekOffsetMS   int `toml:"reseek_offset_ms" yaml:"reseek_offset_ms"`
	ResumeDelayMS    int `toml:"resume_delay_ms" yaml:"resume_delay_ms"`
	SelfSeekWindowMS int `toml:"self_seek_window_ms" yaml:"self_seek_window_ms"`
	GestureWindowMS  int `toml:"gesture_window_ms" yaml:"gesture_window_ms"`
	// RemoveWindowSecs bounds how far ahead "remove next mark" looks.
	RemoveWindowSecs int `toml:"remove_window_seconds" yaml:"remove_window_seconds"`
}

type PassMode struct {
	PulseMS int `toml:"pulse_ms" yaml:"pulse_ms"`
}

// Storage selects the mark persistence backend.
type Storage struct {
	Backend       string `toml:"backend" yaml:"backend"`
	Dir           string `toml:"dir" yaml:"dir"`
	Path          string `toml:"path" yaml:"path"`
	SQLitePath    string `toml:"sqlite_path" yaml:"sqlite_path"`
	BadgerDir     string `toml:"badger_dir" yaml:"badger_dir"`
	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `toml:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix" yaml:"redis_prefix"`
}

type Player struct {
	MPVBinary string   `toml:"mpv_binary" yaml:"mpv_binary"`
	Socket    string   `toml:"socket" yaml:"socket"`
	ExtraArgs []string `toml:"extra_args" yaml:"extra_args"`
}

type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

type Metrics struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Config encapsulates all configuration values for shadowplay.
//
// Keys maps action names (see command.Actions) to the keys that trigger them.
type Config struct {
	Playback Playback            `toml:"playback" yaml:"playback"`
	Loop     Loop                `toml:"loop" yaml:"loop"`
	PassMode PassMode            `toml:"pass_mode" yaml:"pass_mode"`
	Storage  Storage             `toml:"storage" yaml:"storage"`
	Player   Player              `toml:"player" yaml:"player"`
	Logging  Logging             `toml:"logging" yaml:"logging"`
	Metrics  Metrics             `toml:"metrics" yaml:"metrics"`
	Keys     map[string][]string `toml:"keys" yaml:"keys"`
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads, normalizes and validates the config at path. An empty path
// uses the default location. A missing file yields defaults. It returns the
// resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decode(resolved, data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies the same home and absolute path rules used for config values.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// StorageConfig maps the [storage] section onto storage.Open parameters.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Backend:       c.Storage.Backend,
		Dir:           c.Storage.Dir,
		Path:          c.Storage.Path,
		SQLitePath:    c.Storage.SQLitePath,
		BadgerDir:     c.Storage.BadgerDir,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		RedisPrefix:   c.Storage.RedisPrefix,
	}
}

func (c *Config) LoopConfig() loop.Config {
	return loop.Config{
		HitWindow:      ms(c.Loop.HitWindowMS),
		ReseekOffset:   ms(c.Loop.ReseekOffsetMS),
		ResumeDelay:    ms(c.Loop.ResumeDelayMS),
		SelfSeekWindow: ms(c.Loop.SelfSeekWindowMS),
		GestureWindow:  ms(c.Loop.GestureWindowMS),
	}
}

func (c *Config) Pulse() time.Duration { return ms(c.PassMode.PulseMS) }

func (c *Config) CommandOptions() command.Options {
	return command.Options{
		LongSkip:  c.Playback.LongSkipSeconds,
		ShortSkip: c.Playback.ShortSkipSeconds,
	}
}

func (c *Config) VolumeOptions() volume.Options {
	return volume.Options{
		Step:             c.Playback.VolumeStep,
		MaxAmplification: c.Playback.MaxAmplification,
	}
}

// Bindings returns the default key map with [keys] overrides applied.
func (c *Config) Bindings() (command.Bindings, error) {
	b := command.DefaultBindings()
	if err := b.Override(c.Keys); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		File:   c.Logging.File,
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
