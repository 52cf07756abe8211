package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFile(filepath.Join(dir, "marks.json"))
	require.NoError(t, err)
	lite, err := NewSQLite(filepath.Join(dir, "marks.sqlite"))
	require.NoError(t, err)
	bdg, err := NewBadger(filepath.Join(dir, "badger"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rds, err := NewRedis(RedisConfig{Addr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)

	kvs := map[string]KV{
		BackendMemory: NewMemory(),
		BackendFile:   file,
		BackendSQLite: lite,
		BackendBadger: bdg,
		BackendRedis:  rds,
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			_ = kv.Close()
		}
	})
	return kvs
}

func TestBackendsContract(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(ctx, "marks:missing::none")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, kv.Set(ctx, "marks:b.mp4::none", `{"starts":[1]}`))
			require.NoError(t, kv.Set(ctx, "marks:a.mp4::a.srt", `{"starts":[2]}`))
			require.NoError(t, kv.Set(ctx, "other", "x"))

			v, ok, err := kv.Get(ctx, "marks:b.mp4::none")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, `{"starts":[1]}`, v)

			require.NoError(t, kv.Set(ctx, "marks:b.mp4::none", `{"starts":[3]}`))
			v, _, err = kv.Get(ctx, "marks:b.mp4::none")
			require.NoError(t, err)
			require.Equal(t, `{"starts":[3]}`, v)

			keys, err := kv.Keys(ctx, "marks:")
			require.NoError(t, err)
			require.Equal(t, []string{"marks:a.mp4::a.srt", "marks:b.mp4::none"}, keys)

			require.NoError(t, kv.Delete(ctx, "marks:b.mp4::none"))
			require.NoError(t, kv.Delete(ctx, "marks:never-existed"))
			_, ok, err = kv.Get(ctx, "marks:b.mp4::none")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestRedisKeysEscapeGlob(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	kv, err := NewRedis(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, "marks:[x]*.mp4::none", "1"))
	require.NoError(t, kv.Set(ctx, "marks:y.mp4::none", "2"))

	keys, err := kv.Keys(ctx, "marks:[x]*")
	require.NoError(t, err)
	require.Equal(t, []string{"marks:[x]*.mp4::none"}, keys)
	require.True(t, mr.Exists("shadowplay:marks:y.mp4::none"))
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "marks.json")

	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", "v"))
	require.NoError(t, first.Close())

	second, err := NewFile(path)
	require.NoError(t, err)
	defer second.Close()
	v, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestFileRejectsCorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	kv, err := NewFile(path)
	require.NoError(t, err)
	defer kv.Close()

	_, _, err = kv.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	f, ok := kv.(*File)
	require.True(t, ok, "default backend should be the JSON file")
	require.Equal(t, filepath.Join(dir, "marks.json"), f.Path())
	require.NoError(t, kv.Close())

	kv, err = Open(Config{Backend: " Memory "})
	require.NoError(t, err)
	_, ok = kv.(*Memory)
	require.True(t, ok)

	_, err = Open(Config{Backend: "etcd"})
	require.True(t, errors.Is(err, ErrUnknownBackend))

	_, err = Open(Config{Backend: BackendRedis})
	require.Error(t, err)
}
