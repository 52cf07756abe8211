package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizePlayer(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = defaultStorageDir
	}

	var err error
	if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	if c.Storage.SQLitePath, err = expandPath(c.Storage.SQLitePath); err != nil {
		return fmt.Errorf("storage.sqlite_path: %w", err)
	}
	if c.Storage.BadgerDir, err = expandPath(c.Storage.BadgerDir); err != nil {
		return fmt.Errorf("storage.badger_dir: %w", err)
	}

	if c.Storage.RedisPassword == "" {
		if value, ok := os.LookupEnv("SHADOWPLAY_REDIS_PASSWORD"); ok {
			c.Storage.RedisPassword = value
		}
	}
	c.Storage.RedisAddr = strings.TrimSpace(c.Storage.RedisAddr)
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = defaultRedisAddr
	}
	return nil
}

func (c *Config) normalizePlayer() error {
	var err error
	if c.Player.MPVBinary, err = expandPath(strings.TrimSpace(c.Player.MPVBinary)); err != nil {
		return fmt.Errorf("player.mpv_binary: %w", err)
	}
	if c.Player.Socket, err = expandPath(strings.TrimSpace(c.Player.Socket)); err != nil {
		return fmt.Errorf("player.socket: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.File != "" {
		if expanded, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = expanded
		}
	}
}
