// Package binaries locates the external programs shadowplay drives.
package binaries

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

var ErrNotFound = errors.New("executable not found")

// Tool names an external program and the environment variable that may
// override its location.
type Tool struct {
	Name string
	Env  string
	Hint string
}

var (
	MPV = Tool{
		Name: "mpv",
		Env:  "SHADOWPLAY_MPV_PATH",
		Hint: "install mpv (https://mpv.io) or set SHADOWPLAY_MPV_PATH",
	}
	// FFprobe is resolved from PATH only; the probe library invokes it by name.
	FFprobe = Tool{
		Name: "ffprobe",
		Hint: "install ffmpeg (https://ffmpeg.org) and make sure ffprobe is on PATH",
	}
)

type cached struct {
	once sync.Once
	path string
	err  error
}

var cache sync.Map // Tool.Name → *cached

// Lookup resolves tool once per process.
func Lookup(tool Tool) (string, error) {
	v, _ := cache.LoadOrStore(tool.Name, &cached{})
	c := v.(*cached)
	c.once.Do(func() {
		c.path, c.err = resolve(tool)
	})
	return c.path, c.err
}

// Resolve is Lookup without caching, honouring the current environment.
func Resolve(tool Tool) (string, error) {
	return resolve(tool)
}

func resolve(tool Tool) (string, error) {
	if tool.Env != "" {
		if p := os.Getenv(tool.Env); p != "" {
			if !isExecutable(p) {
				return "", fmt.Errorf("%s=%s: %w", tool.Env, p, ErrNotFound)
			}
			return p, nil
		}
	}
	if p, err := exec.LookPath(tool.Name + executableSuffix()); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w; %s", tool.Name, ErrNotFound, tool.Hint)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
