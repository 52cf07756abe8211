package config

import (
	"errors"
	"fmt"

	"github.com/mgpai22/shadowplay/internal/storage"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateLoop(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if _, err := c.Bindings(); err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.LongSkipSeconds <= 0 {
		return errors.New("playback.long_skip_seconds must be positive")
	}
	if c.Playback.ShortSkipSeconds <= 0 {
		return errors.New("playback.short_skip_seconds must be positive")
	}
	if c.Playback.VolumeStep <= 0 || c.Playback.VolumeStep > 1 {
		return errors.New("playback.volume_step must be in (0, 1]")
	}
	if c.Playback.MaxAmplification < 1 || c.Playback.MaxAmplification > 4 {
		return errors.New("playback.max_amplification must be between 1 and 4")
	}
	return nil
}

func (c *Config) validateLoop() error {
	fields := []struct {
		name  string
		value int
	}{
		{"loop.hit_window_ms", c.Loop.HitWindowMS},
		{"loop.resume_delay_ms", c.Loop.ResumeDelayMS},
		{"loop.gesture_window_ms", c.Loop.GestureWindowMS},
		{"loop.remove_window_seconds", c.Loop.RemoveWindowSecs},
		{"pass_mode.pulse_ms", c.PassMode.PulseMS},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive", f.name)
		}
	}
	if c.Loop.ReseekOffsetMS < 0 {
		return errors.New("loop.reseek_offset_ms must not be negative")
	}
	if c.Loop.SelfSeekWindowMS < 0 {
		return errors.New("loop.self_seek_window_ms must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendFile, storage.BackendSQLite, storage.BackendBadger:
		return nil
	case storage.BackendRedis:
		if c.Storage.RedisDB < 0 {
			return errors.New("storage.redis_db must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend: %w %q", storage.ErrUnknownBackend, c.Storage.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}
