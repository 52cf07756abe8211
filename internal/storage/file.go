package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

const lockRetryDelay = 20 * time.Millisecond

// File keeps every key in a single JSON object on disk. Each operation
// re-reads the file under an advisory lock so several processes can share it.
type File struct {
	path string
	lock *flock.Flock
}

func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file storage requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &File{path: path, lock: flock.New(path + ".lock")}, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := f.withLock(ctx, false, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		value, found = data[key]
		return nil
	})
	return value, found, err
}

func (f *File) Set(ctx context.Context, key, value string) error {
	return f.withLock(ctx, true, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		data[key] = value
		return f.write(data)
	})
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.withLock(ctx, true, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		if _, ok := data[key]; !ok {
			return nil
		}
		delete(data, key)
		return f.write(data)
	})
}

func (f *File) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := f.withLock(ctx, false, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		keys = sortedKeys(data, prefix)
		return nil
	})
	return keys, err
}

func (f *File) Close() error {
	return f.lock.Close()
}

func (f *File) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = f.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = f.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", f.path)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

func (f *File) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	if err := renameio.WriteFile(f.path, append(raw, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
