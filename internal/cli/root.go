package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mgpai22/shadowplay/internal/config"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/storage"
)

const skipConfigAnnotation = "shadowplay/skip-config"

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shadowplay",
	Short: "Sentence-repeat practice player for videos",
	Long: `Shadowplay drives mpv for shadowing practice.

Mark where a sentence starts (w) and ends (e). When playback reaches an
end mark it pauses, rewinds to the preceding start mark and resumes after
a short delay, so you can repeat the sentence until you move on.

Marks are stored per video and subtitle file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			logger = logging.NewLogger(verbose)
			return nil
		}

		loaded, _, _, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		opts := cfg.LoggingOptions()
		if verbose {
			opts.Level = "debug"
		}
		if logger, err = logging.New(opts); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if cerr := logger.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close log file: %w", cerr)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/shadowplay/config.toml)")
}

func openStore() (storage.KV, error) {
	kv, err := storage.Open(cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("open mark storage: %w", err)
	}
	return kv, nil
}

// markKey identifies the mark set of a video and subtitle pair. Videos are
// keyed by absolute path, subtitles by file name.
func markKey(videoPath, subsPath string) marks.Key {
	key := marks.Key{Video: videoPath}
	if abs, err := filepath.Abs(videoPath); err == nil {
		key.Video = abs
	}
	if subsPath != "" {
		key.Subtitle = filepath.Base(subsPath)
	}
	return key
}
