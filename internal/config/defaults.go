package config

const (
	defaultConfigPath       = "~/.config/shadowplay/config.toml"
	defaultStorageDir       = "~/.local/share/shadowplay"
	defaultStorageBackend   = "file"
	defaultLongSkipSeconds  = 10
	defaultShortSkipSeconds = 0.5
	defaultVolumeStep       = 0.1
	defaultMaxAmplification = 4
	defaultHitWindowMS      = 500
	defaultReseekOffsetMS   = 50
	defaultResumeDelayMS    = 1000
	defaultSelfSeekWindowMS = 300
	defaultGestureWindowMS  = 1000
	defaultRemoveWindowSecs = 60
	defaultPulseMS          = 2000
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
	defaultRedisAddr        = "127.0.0.1:6379"
	defaultRedisPrefix      = "shadowplay:"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Playback: Playback{
			LongSkipSeconds:  defaultLongSkipSeconds,
			ShortSkipSeconds: defaultShortSkipSeconds,
			VolumeStep:       defaultVolumeStep,
			MaxAmplification: defaultMaxAmplification,
			Autoplay:         true,
		},
		Loop: Loop{
			HitWindowMS:      defaultHitWindowMS,
			ReseekOffsetMS:   defaultReseekOffsetMS,
			ResumeDelayMS:    defaultResumeDelayMS,
			SelfSeekWindowMS: defaultSelfSeekWindowMS,
			GestureWindowMS:  defaultGestureWindowMS,
			RemoveWindowSecs: defaultRemoveWindowSecs,
		},
		PassMode: PassMode{PulseMS: defaultPulseMS},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			Dir:         defaultStorageDir,
			RedisAddr:   defaultRedisAddr,
			RedisPrefix: defaultRedisPrefix,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
