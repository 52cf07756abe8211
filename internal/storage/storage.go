// Package storage provides the local key/value persistence used for mark sets.
//
// Every backend stores opaque string values under string keys. Backends are
// chosen by name through Open; the default is a single JSON file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// KV is the persistent key/value contract.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend string
	// Dir is the base directory for file-backed stores when no explicit path is set.
	Dir           string
	Path          string
	SQLitePath    string
	BadgerDir     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open constructs the configured backend.
func Open(cfg Config) (KV, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(pick(cfg.Path, cfg.Dir, "marks.json"))
	case BackendSQLite:
		return NewSQLite(pick(cfg.SQLitePath, cfg.Dir, "marks.sqlite"))
	case BackendBadger:
		return NewBadger(pick(cfg.BadgerDir, cfg.Dir, "badger"))
	case BackendRedis:
		return NewRedis(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("%w %q (supported: memory, file, sqlite, badger, redis)", ErrUnknownBackend, cfg.Backend)
	}
}

func pick(explicit, dir, name string) string {
	if explicit != "" {
		return explicit
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}
